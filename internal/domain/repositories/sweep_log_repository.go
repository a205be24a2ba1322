package repositories

import (
	"context"

	"custody-sweep.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// SweepLogRepository defines the append-only sweep attempt log.
// Rows are immutable except for the pending -> confirmed/failed transition.
type SweepLogRepository interface {
	Append(ctx context.Context, log *entities.SweepLog) error
	// Resolve closes a PENDING row as CONFIRMED or FAILED with a reason.
	Resolve(ctx context.Context, id uuid.UUID, status entities.SweepLogStatus, reason string) error
	GetByTxHash(ctx context.Context, txHash string) (*entities.SweepLog, error)
	// HasUnresolved reports whether the address has a PENDING row. This is
	// the reconciliation gate consulted before re-enqueueing.
	HasUnresolved(ctx context.Context, address string) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*entities.SweepLog, error)
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]*entities.SweepLog, int, error)
	List(ctx context.Context, limit, offset int) ([]*entities.SweepLog, int, error)
}
