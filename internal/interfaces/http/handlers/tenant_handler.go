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
)

type tenantService interface {
	RegisterTenant(ctx context.Context, input *entities.RegisterTenantInput) (*entities.MasterWallet, error)
	GetWallet(ctx context.Context, tenantID uuid.UUID) (*entities.MasterWallet, error)
	SetSweepEnabled(ctx context.Context, tenantID uuid.UUID, enabled bool) error
}

// TenantHandler handles tenant onboarding and sweep gating endpoints
type TenantHandler struct {
	vaultUsecase tenantService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(vaultUsecase *usecases.VaultUsecase) *TenantHandler {
	return &TenantHandler{vaultUsecase: vaultUsecase}
}

// RegisterTenant onboards a tenant and provisions its master wallet
// POST /api/v1/tenants
func (h *TenantHandler) RegisterTenant(c *gin.Context) {
	var input entities.RegisterTenantInput

	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	wallet, err := h.vaultUsecase.RegisterTenant(c.Request.Context(), &input)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			response.Error(c, domainerrors.Conflict("Tenant already registered"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Tenant registered",
		"wallet":  wallet,
	})
}

// GetWallet returns a tenant's wallet state
// GET /api/v1/tenants/:tenantId/wallet
func (h *TenantHandler) GetWallet(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid tenant ID"))
		return
	}

	wallet, err := h.vaultUsecase.GetWallet(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Tenant not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// SetSweepEnabled toggles sweeping for a tenant
// PUT /api/v1/tenants/:tenantId/sweep-enabled
func (h *TenantHandler) SetSweepEnabled(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid tenant ID"))
		return
	}

	var input entities.SetSweepEnabledInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.vaultUsecase.SetSweepEnabled(c.Request.Context(), tenantID, *input.Enabled); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Tenant not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Sweep setting updated", "enabled": *input.Enabled})
}
