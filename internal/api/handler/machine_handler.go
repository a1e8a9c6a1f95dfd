package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"greentwin/internal/model"
	"greentwin/internal/store"

	"github.com/gin-gonic/gin"
)

// StatusSource exposes per-machine controller state and recent errors
type StatusSource interface {
	Status(machineID string) (model.MachineStatus, bool)
	Statuses() []model.MachineStatus
	Errors() []model.ErrorDetail
}

// SummarySource exposes live sustainability totals
type SummarySource interface {
	Summary(machineID string) (model.MachineSummary, bool)
	Summaries() []model.MachineSummary
}

// SnapshotSource returns persisted summary snapshots
type SnapshotSource interface {
	LatestSummary(ctx context.Context, machineID string) (model.MachineSummary, error)
}

// Handler serves the read-only engine API
type Handler struct {
	version   string
	statuses  StatusSource
	summaries SummarySource
	snapshots SnapshotSource
}

// New creates a Handler. snapshots may be nil.
func New(version string, statuses StatusSource, summaries SummarySource, snapshots SnapshotSource) *Handler {
	return &Handler{
		version:   version,
		statuses:  statuses,
		summaries: summaries,
		snapshots: snapshots,
	}
}

// Health reports liveness
// @Summary Health check
// @Description Returns the service status and version
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is up"
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "greentwin",
		"version": h.version,
	})
}

// ListMachines lists every machine the engine has seen
// @Summary List machines
// @Description Returns the controller status of every known machine, sorted by machine id
// @Tags machines
// @Produce json
// @Success 200 {object} map[string]interface{} "Machine statuses"
// @Router /machines [get]
func (h *Handler) ListMachines(c *gin.Context) {
	statuses := h.statuses.Statuses()
	c.JSON(http.StatusOK, gin.H{
		"machines": statuses,
		"total":    len(statuses),
	})
}

// GetMachine returns one machine's controller status
// @Summary Get machine status
// @Description Returns state, training buffer fill and model details for a machine
// @Tags machines
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} model.MachineStatus "Machine status"
// @Failure 404 {object} map[string]interface{} "Machine not found"
// @Router /machines/{id} [get]
func (h *Handler) GetMachine(c *gin.Context) {
	id := c.Param("id")
	status, ok := h.statuses.Status(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "machine not found", "machine_id": id})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetMachineSummary returns a machine's sustainability totals
// @Summary Get machine summary
// @Description Returns energy, CO2 and cost totals. Falls back to the last persisted snapshot when the machine has not reported since restart.
// @Tags machines
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} map[string]interface{} "Machine summary"
// @Failure 404 {object} map[string]interface{} "Machine not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /machines/{id}/summary [get]
func (h *Handler) GetMachineSummary(c *gin.Context) {
	id := c.Param("id")

	if s, ok := h.summaries.Summary(id); ok {
		c.JSON(http.StatusOK, summaryResponse(s, "live"))
		return
	}

	if h.snapshots != nil {
		s, err := h.snapshots.LatestSummary(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, summaryResponse(s, "snapshot"))
			return
		case !errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "machine not found", "machine_id": id})
}

// ListErrors returns recent processing errors, newest first
// @Summary List errors
// @Description Returns recent processing errors, optionally filtered by machine
// @Tags errors
// @Produce json
// @Param machine_id query string false "Machine ID filter"
// @Param limit query int false "Maximum number of errors" default(50)
// @Success 200 {object} map[string]interface{} "Errors"
// @Failure 400 {object} map[string]interface{} "Invalid limit"
// @Router /errors [get]
func (h *Handler) ListErrors(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	machineID := c.Query("machine_id")

	out := make([]model.ErrorDetail, 0, limit)
	for _, e := range h.statuses.Errors() {
		if machineID != "" && e.MachineID != machineID {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"errors": out,
		"total":  len(out),
	})
}

func summaryResponse(s model.MachineSummary, source string) gin.H {
	return gin.H{
		"summary": s,
		"co2_kg":  s.CO2Kilograms(),
		"source":  source,
	}
}
