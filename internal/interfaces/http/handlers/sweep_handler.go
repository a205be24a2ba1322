package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/interfaces/http/response"
	"custody-sweep.backend/internal/usecases"
	"custody-sweep.backend/pkg/utils"
)

type sweepTriggerService interface {
	RequestManualSweep(ctx context.Context, address string, force bool) (*entities.SweepQueueEntry, error)
	RequestBatchSweep(ctx context.Context, addresses []string, priority entities.SweepPriority) ([]*entities.SweepQueueEntry, error)
	RequestEmergencySweep(ctx context.Context, address, reason string) (*entities.SweepQueueEntry, error)
}

type sweepQueryService interface {
	ListQueue(ctx context.Context, status entities.SweepStatus, limit, offset int) ([]*entities.SweepQueueEntry, int, error)
	ListLogs(ctx context.Context, address string, limit, offset int) ([]*entities.SweepLog, int, error)
	GetLogByTxHash(ctx context.Context, txHash string) (*entities.SweepLog, error)
	RequeueFailed(ctx context.Context, id uuid.UUID) (*entities.SweepQueueEntry, error)
}

// EmergencyStopInput raises the global claim freeze
type EmergencyStopInput struct {
	Reason string `json:"reason" binding:"required"`
}

// SweepHandler handles sweep trigger and inspection endpoints
type SweepHandler struct {
	trigger   sweepTriggerService
	query     sweepQueryService
	setStop   func(ctx context.Context, reason string) error
	clearStop func(ctx context.Context) error
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(
	trigger *usecases.EligibilityUsecase,
	query *usecases.SweepQueryUsecase,
	setStop func(ctx context.Context, reason string) error,
	clearStop func(ctx context.Context) error,
) *SweepHandler {
	return &SweepHandler{
		trigger:   trigger,
		query:     query,
		setStop:   setStop,
		clearStop: clearStop,
	}
}

func sweepTriggerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
		response.Error(c, domainerrors.NotFound("Address not found"))
	case errors.Is(err, domainerrors.ErrAlreadyQueued):
		response.Error(c, domainerrors.Conflict("Address already queued for sweep"))
	case errors.Is(err, domainerrors.ErrPendingUnresolved):
		response.Error(c, domainerrors.Conflict("Address has an unresolved pending sweep"))
	case errors.Is(err, domainerrors.ErrBelowMinimum):
		response.Error(c, domainerrors.BadRequest("Sweepable amount below minimum"))
	default:
		response.Error(c, err)
	}
}

// ManualSweep queues a sweep for one address
// POST /api/v1/sweeps/manual
func (h *SweepHandler) ManualSweep(c *gin.Context) {
	var input entities.ManualSweepInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	entry, err := h.trigger.RequestManualSweep(c.Request.Context(), input.Address, input.Force)
	if err != nil {
		sweepTriggerError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"entry": entry})
}

// BatchSweep queues sweeps for several addresses at one priority
// POST /api/v1/sweeps/batch
func (h *SweepHandler) BatchSweep(c *gin.Context) {
	var input entities.BatchSweepInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if len(input.Addresses) == 0 {
		response.Error(c, domainerrors.BadRequest("addresses must not be empty"))
		return
	}

	priority, ok := entities.ParseSweepPriority(input.Priority)
	if !ok {
		response.Error(c, domainerrors.BadRequest("Invalid priority"))
		return
	}

	entries, err := h.trigger.RequestBatchSweep(c.Request.Context(), input.Addresses, priority)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"requested": len(input.Addresses),
		"enqueued":  len(entries),
		"entries":   entries,
	})
}

// EmergencySweep queues an emergency-priority sweep
// POST /api/v1/sweeps/emergency
func (h *SweepHandler) EmergencySweep(c *gin.Context) {
	var input entities.EmergencySweepInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	entry, err := h.trigger.RequestEmergencySweep(c.Request.Context(), input.Address, input.Reason)
	if err != nil {
		sweepTriggerError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"entry": entry})
}

// RequeueSweep returns a failed entry to the queue with attempts reset
// POST /api/v1/sweeps/:id/requeue
func (h *SweepHandler) RequeueSweep(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid entry ID"))
		return
	}

	entry, err := h.query.RequeueFailed(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Entry not found"))
			return
		}
		if errors.Is(err, domainerrors.ErrNotRequeueable) {
			response.Error(c, domainerrors.Conflict("Only failed entries can be re-queued"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"entry": entry})
}

// ListQueue lists queue entries, optionally filtered by status
// GET /api/v1/sweeps/queue
func (h *SweepHandler) ListQueue(c *gin.Context) {
	status := entities.SweepStatus(c.Query("status"))
	switch status {
	case "", entities.SweepStatusQueued, entities.SweepStatusProcessing,
		entities.SweepStatusCompleted, entities.SweepStatusFailed:
	default:
		response.Error(c, domainerrors.BadRequest("Invalid status"))
		return
	}

	var params utils.PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	p := utils.GetPaginationParams(params.Page, params.Limit)

	entries, total, err := h.query.ListQueue(c.Request.Context(), status, p.Limit, p.CalculateOffset())
	if err != nil {
		response.Error(c, err)
		return
	}

	if entries == nil {
		entries = []*entities.SweepQueueEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"entries":    entries,
		"pagination": utils.CalculateMeta(int64(total), p.Page, p.Limit),
	})
}

// ListLogs lists sweep log rows, optionally filtered by address
// GET /api/v1/sweeps/logs
func (h *SweepHandler) ListLogs(c *gin.Context) {
	var params utils.PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	p := utils.GetPaginationParams(params.Page, params.Limit)

	logs, total, err := h.query.ListLogs(c.Request.Context(), c.Query("address"), p.Limit, p.CalculateOffset())
	if err != nil {
		response.Error(c, err)
		return
	}

	if logs == nil {
		logs = []*entities.SweepLog{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": utils.CalculateMeta(int64(total), p.Page, p.Limit),
	})
}

// GetLogByTxHash looks up one sweep log row by transaction hash
// GET /api/v1/sweeps/logs/:txHash
func (h *SweepHandler) GetLogByTxHash(c *gin.Context) {
	log, err := h.query.GetLogByTxHash(c.Request.Context(), c.Param("txHash"))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Sweep log not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"log": log})
}

// SetEmergencyStop freezes claiming across all workers
// POST /api/v1/sweeps/emergency-stop
func (h *SweepHandler) SetEmergencyStop(c *gin.Context) {
	var input EmergencyStopInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.setStop(c.Request.Context(), input.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Emergency stop raised"})
}

// ClearEmergencyStop resumes claiming
// DELETE /api/v1/sweeps/emergency-stop
func (h *SweepHandler) ClearEmergencyStop(c *gin.Context) {
	if err := h.clearStop(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Emergency stop cleared"})
}
