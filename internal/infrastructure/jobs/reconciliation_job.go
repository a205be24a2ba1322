package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"custody-sweep.backend/internal/usecases"
	"custody-sweep.backend/pkg/logger"
)

// reconcileBatchLimit bounds pending rows resolved per pass.
const reconcileBatchLimit = 100

type pendingReconciler interface {
	ReconcilePending(ctx context.Context, limit int) error
}

// ReconciliationJob periodically resolves PENDING sweep logs against chain
// state so their addresses become eligible again.
type ReconciliationJob struct {
	retryCtrl pendingReconciler
	interval  time.Duration
	stop      chan struct{}
}

// NewReconciliationJob creates a new reconciliation job
func NewReconciliationJob(retryCtrl *usecases.RetryController, interval time.Duration) *ReconciliationJob {
	return &ReconciliationJob{
		retryCtrl: retryCtrl,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start runs the reconciliation loop until ctx is cancelled or Stop is called
func (j *ReconciliationJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting sweep reconciliation job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "reconciliation job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "reconciliation job stopped")
			return
		case <-ticker.C:
			if err := j.retryCtrl.ReconcilePending(ctx, reconcileBatchLimit); err != nil {
				logger.Error(ctx, "reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// Stop halts the loop
func (j *ReconciliationJob) Stop() {
	close(j.stop)
}
