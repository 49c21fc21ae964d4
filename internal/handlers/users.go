package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/recommendations"
	"github.com/zfogg/reelrank/internal/util"
)

// GetUserProfile returns engagement stats, tag profile and preferences
// GET /api/v1/users/:username/profile
func (h *Handlers) GetUserProfile(c *gin.Context) {
	username, err := util.NormalizeUsername(c.Param("username"))
	if err != nil {
		util.RespondValidationError(c, "username", err.Error())
		return
	}

	profile, err := h.engine().UserProfile(c.Request.Context(), username)
	if stderrors.Is(err, recommendations.ErrUserNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load user profile")
		return
	}

	respondSuccess(c, gin.H{"profile": profile})
}

// UpdatePreferences stores explicit preferences for a user, creating the user if needed
// PUT /api/v1/users/:username/preferences
func (h *Handlers) UpdatePreferences(c *gin.Context) {
	username, err := util.NormalizeUsername(c.Param("username"))
	if err != nil {
		util.RespondValidationError(c, "username", err.Error())
		return
	}

	var prefs models.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		util.RespondValidationError(c, "", "invalid preferences payload: "+err.Error())
		return
	}

	user, err := h.engine().UpdatePreferences(c.Request.Context(), username, &prefs)
	if stderrors.Is(err, recommendations.ErrInvalidRequest) {
		util.RespondValidationError(c, "", err.Error())
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to update preferences")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"username":    user.Username,
		"preferences": user.Preferences,
	})
}
