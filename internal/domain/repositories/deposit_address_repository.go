package repositories

import (
	"context"

	"custody-sweep.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// DepositAddressRepository defines deposit address data operations
type DepositAddressRepository interface {
	Create(ctx context.Context, addr *entities.DepositAddress) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.DepositAddress, error)
	GetByUser(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error)
	GetByAddress(ctx context.Context, address string) (*entities.DepositAddress, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*entities.DepositAddress, int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}
