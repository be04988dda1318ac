package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/models"
)

// TransformRequest carries raw snapshots already read by the caller.
type TransformRequest struct {
	Stats    []models.StatsSample    `json:"stats"`
	Pods     []models.PodWithStats   `json:"pods"`
	Averages *models.NetworkAverages `json:"averages,omitempty"`
}

type TransformResponse struct {
	Nodes []models.CanonicalNode `json:"nodes"`
	Stats models.NetworkStats    `json:"stats"`
}

// Transform godoc
// @Summary Normalize raw snapshots
// @Description Runs the transform pipeline over the posted snapshots. Nothing is cached and the service baseline is not touched.
// @Tags transform
// @Accept json
// @Produce json
// @Param body body TransformRequest true "Raw snapshots"
// @Success 200 {object} TransformResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/transform [post]
func (h *Handler) Transform(c echo.Context) error {
	var req TransformRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
		})
	}

	batch := models.SnapshotBatch{Stats: req.Stats, Pods: req.Pods}
	nodes, stats := h.Transformer.ProcessBatch(batch, req.Averages)

	return c.JSON(http.StatusOK, TransformResponse{
		Nodes: nodes,
		Stats: stats,
	})
}
