package repositories

import (
	"context"
	"time"

	"custody-sweep.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// SweepQueueRepository defines the durable sweep work queue.
//
// The queue upholds the primary concurrency invariant: at most one entry per
// address in QUEUED or PROCESSING at any time, and a claim hands an entry to
// exactly one worker.
type SweepQueueRepository interface {
	// Enqueue inserts a new QUEUED entry. Returns ErrAlreadyQueued when a
	// live (QUEUED or PROCESSING) entry already exists for the address.
	Enqueue(ctx context.Context, entry *entities.SweepQueueEntry) error
	// ClaimNext atomically moves the highest-priority ready entry (not_before
	// elapsed, FIFO within a tier) to PROCESSING for the given worker.
	// Returns ErrNotFound when nothing is ready.
	ClaimNext(ctx context.Context, workerID string) (*entities.SweepQueueEntry, error)
	// ClaimBatch claims up to max ready entries belonging to the same tenant
	// as the first claimable entry. When maxWait > 0, a normal-priority
	// candidate younger than maxWait whose tenant cannot yet fill the batch
	// is left queued for a later cycle.
	ClaimBatch(ctx context.Context, workerID string, max int, maxWait time.Duration) ([]*entities.SweepQueueEntry, error)
	// Requeue transitions PROCESSING back to QUEUED with a retry delay.
	// Reserved for the retry controller.
	Requeue(ctx context.Context, id uuid.UUID, lastError string, notBefore time.Time) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.SweepQueueEntry, error)
	// HasLive reports whether a QUEUED or PROCESSING entry exists for the address.
	HasLive(ctx context.Context, addressID uuid.UUID) (bool, error)
	// ResetForRetry returns a FAILED entry to QUEUED with attempts cleared.
	// Backs the operator's manual re-queue action.
	ResetForRetry(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status entities.SweepStatus, limit, offset int) ([]*entities.SweepQueueEntry, int, error)
	CountByStatus(ctx context.Context, status entities.SweepStatus) (int64, error)
}
