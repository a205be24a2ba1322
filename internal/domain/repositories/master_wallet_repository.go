package repositories

import (
	"context"

	"custody-sweep.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// MasterWalletRepository defines master wallet data operations
type MasterWalletRepository interface {
	Create(ctx context.Context, wallet *entities.MasterWallet) error
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*entities.MasterWallet, error)
	// NextDerivationIndex atomically increments last_derivation_index under a
	// row lock and returns the claimed index. The counter never goes back.
	NextDerivationIndex(ctx context.Context, tenantID uuid.UUID) (uint32, error)
	SetSweepEnabled(ctx context.Context, tenantID uuid.UUID, enabled bool) error
}
