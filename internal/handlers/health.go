package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// Health reports database connectivity, plus Redis and the model scorer when configured
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	dbStatus := "ok"
	if sqlDB, err := h.kernel.DB().DB(); err != nil {
		dbStatus = "error"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		logger.WarnWithFields("Health check: database unreachable", err)
		dbStatus = "error"
	}
	checks["database"] = dbStatus
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	if redis := h.kernel.Redis(); redis != nil {
		if err := redis.Ping(ctx); err != nil {
			logger.WarnWithFields("Health check: redis unreachable", err)
			checks["redis"] = "degraded"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}
	checks["model_scorer"] = h.kernel.Scorer().State()

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    checks,
		"metrics":   metrics.GetManager().GetAllMetrics(),
		"timestamp": time.Now().UTC().Unix(),
	})
}
