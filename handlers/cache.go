package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/services"
)

type CacheHandlers struct {
	cache *services.CacheService
}

func NewCacheHandlers(cache *services.CacheService) *CacheHandlers {
	return &CacheHandlers{
		cache: cache,
	}
}

// GetCacheStatus returns cache health and statistics
func (h *CacheHandlers) GetCacheStatus(c echo.Context) error {
	mode := h.cache.GetCacheMode()

	return c.JSON(http.StatusOK, map[string]any{
		"mode":    string(mode),
		"healthy": mode == services.CacheModeRedis,
		"stats":   h.cache.GetCacheStats(),
	})
}

// ClearCache drops cached rounds. ?baseline=true also resets the scoring
// baseline so the next round is a cold start.
func (h *CacheHandlers) ClearCache(c echo.Context) error {
	withBaseline := c.QueryParam("baseline") == "true"

	if err := h.cache.ClearCache(withBaseline); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":        "Cache cleared successfully",
		"baseline_reset": withBaseline,
	})
}
