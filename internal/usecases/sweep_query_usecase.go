package usecases

import (
	"context"

	"github.com/google/uuid"

	"custody-sweep.backend/internal/domain/entities"
	"custody-sweep.backend/internal/domain/repositories"
	"custody-sweep.backend/internal/observability"
)

// SweepQueryUsecase backs the dashboard surface: queue and log inspection
// plus the operator's manual re-queue action.
type SweepQueryUsecase struct {
	queueRepo repositories.SweepQueueRepository
	logRepo   repositories.SweepLogRepository
	metrics   *observability.Metrics
}

// NewSweepQueryUsecase creates a new sweep query usecase
func NewSweepQueryUsecase(
	queueRepo repositories.SweepQueueRepository,
	logRepo repositories.SweepLogRepository,
	metrics *observability.Metrics,
) *SweepQueryUsecase {
	return &SweepQueryUsecase{
		queueRepo: queueRepo,
		logRepo:   logRepo,
		metrics:   metrics,
	}
}

// ListQueue lists queue entries, optionally filtered by status
func (u *SweepQueryUsecase) ListQueue(ctx context.Context, status entities.SweepStatus, limit, offset int) ([]*entities.SweepQueueEntry, int, error) {
	entries, total, err := u.queueRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if depth, countErr := u.queueRepo.CountByStatus(ctx, entities.SweepStatusQueued); countErr == nil {
		u.metrics.SetQueueDepth(float64(depth))
	}
	return entries, total, nil
}

// ListLogs lists sweep log rows, optionally filtered by address
func (u *SweepQueryUsecase) ListLogs(ctx context.Context, address string, limit, offset int) ([]*entities.SweepLog, int, error) {
	if address != "" {
		return u.logRepo.ListByAddress(ctx, address, limit, offset)
	}
	return u.logRepo.List(ctx, limit, offset)
}

// GetLogByTxHash looks up one log row by its broadcast hash, the handle
// operators get from block explorers and support tickets.
func (u *SweepQueryUsecase) GetLogByTxHash(ctx context.Context, txHash string) (*entities.SweepLog, error) {
	return u.logRepo.GetByTxHash(ctx, txHash)
}

// RequeueFailed returns a terminally failed entry to the queue with its
// attempt counter reset. This is the operator action for failed/stuck
// entries surfaced with last_error.
func (u *SweepQueryUsecase) RequeueFailed(ctx context.Context, id uuid.UUID) (*entities.SweepQueueEntry, error) {
	if err := u.queueRepo.ResetForRetry(ctx, id); err != nil {
		return nil, err
	}
	return u.queueRepo.GetByID(ctx, id)
}
