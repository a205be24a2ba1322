package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	"custody-sweep.backend/internal/usecases"
	"custody-sweep.backend/pkg/crypto"
	"custody-sweep.backend/pkg/logger"
)

// EmergencyStopCheck reports whether new claims must be held back.
type EmergencyStopCheck func(ctx context.Context) (bool, error)

type claimQueue interface {
	ClaimBatch(ctx context.Context, workerID string, limit int, maxWait time.Duration) ([]*entities.SweepQueueEntry, error)
}

type sweepExecutor interface {
	Execute(ctx context.Context, entry *entities.SweepQueueEntry) error
}

type failureHandler interface {
	HandleFailure(ctx context.Context, entry *entities.SweepQueueEntry, execErr error) error
}

// SweepScheduler runs the bounded worker pool. Workers are short-lived
// tasks: claim, execute, resolve, loop. An emergency stop blocks new claims
// but lets in-flight broadcasts finish and log their outcome.
type SweepScheduler struct {
	queueRepo     claimQueue
	executor      sweepExecutor
	retryCtrl     failureHandler
	stopCheck     EmergencyStopCheck
	workers       int
	claimInterval time.Duration
	batchMaxSize  int
	batchMaxWait  time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(
	queueRepo repositories.SweepQueueRepository,
	executor *usecases.SweepExecutor,
	retryCtrl *usecases.RetryController,
	stopCheck EmergencyStopCheck,
	workers int,
	claimInterval time.Duration,
	batchMaxSize int,
	batchMaxWait time.Duration,
) *SweepScheduler {
	if workers < 1 {
		workers = 1
	}
	if batchMaxSize < 1 {
		batchMaxSize = 1
	}
	return &SweepScheduler{
		queueRepo:     queueRepo,
		executor:      executor,
		retryCtrl:     retryCtrl,
		stopCheck:     stopCheck,
		workers:       workers,
		claimInterval: claimInterval,
		batchMaxSize:  batchMaxSize,
		batchMaxWait:  batchMaxWait,
		stop:          make(chan struct{}),
	}
}

// Start launches the worker pool and blocks until ctx is cancelled or Stop
// is called.
func (s *SweepScheduler) Start(ctx context.Context) {
	logger.Info(ctx, "starting sweep scheduler", zap.Int("workers", s.workers))

	for i := 0; i < s.workers; i++ {
		token, err := crypto.GenerateRandomToken(8)
		if err != nil {
			token = time.Now().Format("150405.000000000")
		}
		workerID := "worker-" + token

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runWorker(ctx, workerID)
		}()
	}

	s.wg.Wait()
	logger.Info(ctx, "sweep scheduler stopped")
}

// Stop signals workers to exit after their current entry
func (s *SweepScheduler) Stop() {
	close(s.stop)
}

func (s *SweepScheduler) runWorker(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		if !s.claimCycle(ctx, workerID) {
			if !s.sleep(ctx) {
				return
			}
		}
	}
}

// claimCycle claims and processes one batch. Returns false when the queue
// was empty or claims are held back, signaling the worker to idle.
func (s *SweepScheduler) claimCycle(ctx context.Context, workerID string) bool {
	stopped, err := s.stopCheck(ctx)
	if err != nil {
		logger.Warn(ctx, "emergency stop check failed", zap.Error(err))
		return false
	}
	if stopped {
		return false
	}

	batch, err := s.queueRepo.ClaimBatch(ctx, workerID, s.batchMaxSize, s.batchMaxWait)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrNotFound) {
			logger.Error(ctx, "claim failed", zap.String("worker", workerID), zap.Error(err))
		}
		return false
	}

	for _, entry := range batch {
		if execErr := s.executor.Execute(ctx, entry); execErr != nil {
			if handleErr := s.retryCtrl.HandleFailure(ctx, entry, execErr); handleErr != nil {
				logger.Error(ctx, "failed to resolve sweep failure",
					zap.String("entry_id", entry.ID.String()),
					zap.NamedError("exec_error", execErr),
					zap.Error(handleErr))
			}
		}
	}
	return true
}

func (s *SweepScheduler) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.claimInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.stop:
		return false
	case <-timer.C:
		return true
	}
}
