package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mnlt/filemigrator/internal/repository"
	"github.com/mnlt/filemigrator/internal/service"
)

// StatusHandler exposes read-only migration state. Orchestration stays on
// the CLI; this surface only observes.
type StatusHandler struct {
	migrator *service.Migrator
	repo     *repository.FileRepository
}

// NewStatusHandler creates a new status handler.
// Parameters:
//   - migrator: migration orchestrator used for snapshots.
//   - repo: file repository for record listings.
// Returns:
//   - *StatusHandler: initialized handler.
func NewStatusHandler(migrator *service.Migrator, repo *repository.FileRepository) *StatusHandler {
	return &StatusHandler{
		migrator: migrator,
		repo:     repo,
	}
}

// Status handles GET /api/v1/status.
func (h *StatusHandler) Status(c *gin.Context) {
	status, err := h.migrator.GetMigrationStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Stats handles GET /api/v1/stats.
func (h *StatusHandler) Stats(c *gin.Context) {
	stats, err := h.repo.AggregateStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListFiles handles GET /api/v1/files.
func (h *StatusHandler) ListFiles(c *gin.Context) {
	state := c.DefaultQuery("state", "unmoved")
	if state != "moved" && state != "unmoved" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be moved or unmoved"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.repo.ListByState(c.Request.Context(), state == "moved", limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":  state,
		"count":  len(records),
		"files":  records,
		"limit":  limit,
		"offset": offset,
	})
}
