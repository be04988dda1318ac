package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/models"
)

// GetStats godoc
// @Summary Get network statistics
// @Description Network aggregate of the latest round, including the averages the next round is scored with
// @Tags stats
// @Produce json
// @Success 200 {object} NetworkStatsResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/stats [get]
func (h *Handler) GetStats(c echo.Context) error {
	stats, stale, found := h.Cache.GetNetworkStats(true)

	// Last resort: run a round now.
	if !found {
		h.Cache.Refresh(c.Request().Context())
		stats, stale, found = h.Cache.GetNetworkStats(true)
		if !found {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: "Network statistics temporarily unavailable",
			})
		}
	}

	response := NetworkStatsResponse{NetworkStats: *stats}
	if nodes, _, ok := h.Cache.GetNodes(true); ok {
		for _, node := range nodes {
			if node.IsPublic != nil && *node.IsPublic {
				response.PublicNodes++
			} else {
				response.PrivateNodes++
			}
		}
	}

	if stale {
		c.Response().Header().Set("X-Data-Stale", "true")
		c.Response().Header().Set("Cache-Control", "max-age=30")
	} else {
		c.Response().Header().Set("Cache-Control", "max-age=60")
	}

	return c.JSON(http.StatusOK, response)
}

// NetworkStatsResponse adds visibility counts to the network aggregate.
// Nodes that do not report visibility count as private.
type NetworkStatsResponse struct {
	models.NetworkStats
	PublicNodes  int `json:"public_nodes"`
	PrivateNodes int `json:"private_nodes"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
