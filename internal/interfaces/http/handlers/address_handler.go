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

type addressService interface {
	AllocateNext(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error)
	GetByUser(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*entities.DepositAddress, int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type observationService interface {
	EvaluateObservation(ctx context.Context, obs *entities.BalanceObservation) (*entities.SweepQueueEntry, error)
}

// AddressHandler handles deposit address and balance observation endpoints
type AddressHandler struct {
	allocator   addressService
	eligibility observationService
}

// NewAddressHandler creates a new address handler
func NewAddressHandler(allocator *usecases.AllocatorUsecase, eligibility *usecases.EligibilityUsecase) *AddressHandler {
	return &AddressHandler{allocator: allocator, eligibility: eligibility}
}

// AllocateAddress returns the user's deposit address, deriving one on first call
// POST /api/v1/addresses
func (h *AddressHandler) AllocateAddress(c *gin.Context) {
	var input entities.AllocateAddressInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	tenantID, _ := uuid.Parse(input.TenantID)
	userID, _ := uuid.Parse(input.UserID)

	addr, err := h.allocator.AllocateNext(c.Request.Context(), tenantID, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Tenant not registered"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"address": addr})
}

// GetUserAddress returns a user's deposit address without allocating
// GET /api/v1/tenants/:tenantId/users/:userId/address
func (h *AddressHandler) GetUserAddress(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid tenant ID"))
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid user ID"))
		return
	}

	addr, err := h.allocator.GetByUser(c.Request.Context(), tenantID, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Address not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"address": addr})
}

// ListAddresses lists a tenant's deposit addresses
// GET /api/v1/tenants/:tenantId/addresses
func (h *AddressHandler) ListAddresses(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid tenant ID"))
		return
	}

	var params utils.PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	p := utils.GetPaginationParams(params.Page, params.Limit)

	addresses, total, err := h.allocator.ListByTenant(c.Request.Context(), tenantID, p.Limit, p.CalculateOffset())
	if err != nil {
		response.Error(c, err)
		return
	}

	if addresses == nil {
		addresses = []*entities.DepositAddress{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"addresses":  addresses,
		"pagination": utils.CalculateMeta(int64(total), p.Page, p.Limit),
	})
}

// DeactivateAddress excludes an address from future sweeps
// POST /api/v1/addresses/:id/deactivate
func (h *AddressHandler) DeactivateAddress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid address ID"))
		return
	}

	if err := h.allocator.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Address not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Address deactivated"})
}

// SubmitObservation accepts a balance observation from the chain watcher.
// An observation that does not qualify is acknowledged without an entry;
// watchers replay freely.
// POST /api/v1/observations
func (h *AddressHandler) SubmitObservation(c *gin.Context) {
	var obs entities.BalanceObservation

	if err := c.ShouldBindJSON(&obs); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	entry, err := h.eligibility.EvaluateObservation(c.Request.Context(), &obs)
	if err != nil {
		response.Error(c, err)
		return
	}

	if entry == nil {
		response.Success(c, http.StatusOK, gin.H{"enqueued": false})
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"enqueued": true, "entry": entry})
}
