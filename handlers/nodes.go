package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"xandpulse/config"
	"xandpulse/models"
	"xandpulse/services"
	"xandpulse/utils"
)

type Handler struct {
	Cfg         *config.Config
	Cache       *services.CacheService
	Transformer *utils.Transformer
	StartedAt   time.Time
}

func NewHandler(cfg *config.Config, cache *services.CacheService, transformer *utils.Transformer) *Handler {
	return &Handler{
		Cfg:         cfg,
		Cache:       cache,
		Transformer: transformer,
		StartedAt:   time.Now(),
	}
}

// GetNodes godoc
// @Summary Get canonical nodes with pagination
// @Tags nodes
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 50, max: 500)"
// @Param status query string false "Filter by status (active, syncing, inactive)"
// @Param sort query string false "Sort field (health, uptime, storage, latency, bandwidth)"
// @Param order query string false "Sort order (asc, desc) (default: desc)"
// @Success 200 {object} NodesResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/nodes [get]
func (h *Handler) GetNodes(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	statusFilter := models.NodeStatus(strings.ToLower(c.QueryParam("status")))
	if statusFilter != "" && !statusFilter.Valid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "status must be one of active, syncing, inactive",
		})
	}
	sortField := c.QueryParam("sort")
	sortOrder := c.QueryParam("order")
	if sortOrder == "" {
		sortOrder = "desc"
	}

	nodes, stale, found := h.Cache.GetNodes(true)
	if !found {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Node data temporarily unavailable",
		})
	}

	// Always copy: the cached slice is shared.
	selected := make([]models.CanonicalNode, 0, len(nodes))
	for _, node := range nodes {
		if statusFilter == "" || node.Status == statusFilter {
			selected = append(selected, node)
		}
	}

	sortNodes(selected, sortField, sortOrder)

	totalNodes := len(selected)
	totalPages := (totalNodes + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	startIdx := (page - 1) * limit
	endIdx := startIdx + limit

	if startIdx >= totalNodes {
		startIdx = 0
		endIdx = 0
		page = 1
	}
	if endIdx > totalNodes {
		endIdx = totalNodes
	}

	response := NodesResponse{
		Nodes: selected[startIdx:endIdx],
		Pagination: PaginationMeta{
			Page:       page,
			Limit:      limit,
			TotalItems: totalNodes,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}

	if stale {
		c.Response().Header().Set("X-Data-Stale", "true")
	}

	return c.JSON(http.StatusOK, response)
}

// GetNode godoc
// @Summary Get a single node by public key or IP
// @Tags nodes
// @Produce json
// @Param id path string true "Public key or IP address"
// @Success 200 {object} models.CanonicalNode
// @Failure 404 {object} ErrorResponse
// @Router /api/nodes/{id} [get]
func (h *Handler) GetNode(c echo.Context) error {
	node, stale, found := h.Cache.GetNode(c.Param("id"), true)
	if !found {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Node not found",
		})
	}

	if stale {
		c.Response().Header().Set("X-Data-Stale", "true")
	}

	return c.JSON(http.StatusOK, node)
}

var statusWeight = map[models.NodeStatus]int{
	models.StatusActive:   3,
	models.StatusSyncing:  2,
	models.StatusInactive: 1,
}

func sortNodes(nodes []models.CanonicalNode, field, order string) {
	asc := order == "asc"

	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		var less, equal bool

		switch field {
		case "uptime":
			less, equal = a.Uptime < b.Uptime, a.Uptime == b.Uptime
		case "storage":
			less, equal = a.Storage.Used < b.Storage.Used, a.Storage.Used == b.Storage.Used
		case "latency":
			less, equal = a.Performance.AvgLatency < b.Performance.AvgLatency, a.Performance.AvgLatency == b.Performance.AvgLatency
		case "bandwidth":
			less, equal = a.Performance.BandwidthMbps < b.Performance.BandwidthMbps, a.Performance.BandwidthMbps == b.Performance.BandwidthMbps
		case "health":
			less, equal = a.HealthScore < b.HealthScore, a.HealthScore == b.HealthScore
		default:
			// status first, then health
			wa, wb := statusWeight[a.Status], statusWeight[b.Status]
			if wa != wb {
				less = wa < wb
			} else {
				less, equal = a.HealthScore < b.HealthScore, a.HealthScore == b.HealthScore
			}
		}

		if equal {
			return false
		}
		if asc {
			return less
		}
		return !less
	})
}

// NodesResponse represents the paginated nodes response
type NodesResponse struct {
	Nodes      []models.CanonicalNode `json:"nodes"`
	Pagination PaginationMeta         `json:"pagination"`
}

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}
