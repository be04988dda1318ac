package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// GetHealth returns OK
func (h *Handler) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus returns backend status
func (h *Handler) GetStatus(c echo.Context) error {
	nodes, stale, _ := h.Cache.GetNodes(true)
	refresh := h.Cache.RefreshStatus()

	status := map[string]any{
		"status":         "running",
		"uptime":         time.Since(h.StartedAt).Round(time.Second).String(),
		"known_nodes":    len(nodes),
		"stale":          stale,
		"cache_mode":     string(h.Cache.GetCacheMode()),
		"seed_nodes":     len(h.Cfg.Server.SeedNodes),
		"rounds":         refresh.Rounds,
		"last_refreshed": refresh.LastSuccess,
		"timestamp":      time.Now(),
	}
	if refresh.LastError != "" {
		status["last_error"] = refresh.LastError
	}
	return c.JSON(http.StatusOK, status)
}
