package util

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/errors"
)

// ParseUintParam parses a positive integer id, e.g. a path parameter.
func ParseUintParam(s string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// Pagination is a validated page/page_size pair.
type Pagination struct {
	Page     int
	PageSize int
}

// ParsePagination reads page and page_size from the query string.
// Missing values take defaults; out-of-range or non-numeric values are rejected.
func ParsePagination(c *gin.Context, defaultSize, maxSize int) (Pagination, *errors.APIError) {
	p := Pagination{Page: 1, PageSize: defaultSize}

	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, errors.ValidationError("page", "page must be an integer >= 1")
		}
		p.Page = v
	}

	if raw := c.Query("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxSize {
			return p, errors.ValidationError("page_size", "page_size must be an integer between 1 and "+strconv.Itoa(maxSize))
		}
		p.PageSize = v
	}

	return p, nil
}
