package usecases

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	"custody-sweep.backend/internal/observability"
	"custody-sweep.backend/pkg/logger"
)

// FailureClass partitions sweep failures per the retry policy.
type FailureClass int

const (
	// FailureTransient is retried with capped exponential backoff.
	FailureTransient FailureClass = iota
	// FailurePermanent terminates the entry; operator review required.
	FailurePermanent
	// FailureFatal indicates a tenant-level vault/config fault. The entry is
	// terminated and sweeping is disabled for the whole tenant; every queued
	// sibling would hit the same fault, so none of them may be claimed until
	// an operator re-enables the tenant.
	FailureFatal
)

// RetryController classifies failures, schedules retries and reconciles
// ambiguous broadcast outcomes against chain state.
type RetryController struct {
	queueRepo      repositories.SweepQueueRepository
	logRepo        repositories.SweepLogRepository
	walletRepo     repositories.MasterWalletRepository
	chain          ChainClient
	maxAttempts    int
	backoffBase    time.Duration
	backoffCap     time.Duration
	reconcileGrace time.Duration
	metrics        *observability.Metrics
}

// NewRetryController creates a new retry controller
func NewRetryController(
	queueRepo repositories.SweepQueueRepository,
	logRepo repositories.SweepLogRepository,
	walletRepo repositories.MasterWalletRepository,
	chain ChainClient,
	maxAttempts int,
	backoffBase, backoffCap, reconcileGrace time.Duration,
	metrics *observability.Metrics,
) *RetryController {
	return &RetryController{
		queueRepo:      queueRepo,
		logRepo:        logRepo,
		walletRepo:     walletRepo,
		chain:          chain,
		maxAttempts:    maxAttempts,
		backoffBase:    backoffBase,
		backoffCap:     backoffCap,
		reconcileGrace: reconcileGrace,
		metrics:        metrics,
	}
}

// Classify maps an execution error to its failure class.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, domainerrors.ErrSeedDecryptionFailed):
		return FailureFatal
	case errors.Is(err, domainerrors.ErrDerivationMismatch):
		return FailureFatal
	case errors.Is(err, domainerrors.ErrInsufficientResources),
		errors.Is(err, domainerrors.ErrBelowMinimum),
		errors.Is(err, domainerrors.ErrSignatureRejected),
		errors.Is(err, domainerrors.ErrNotFound):
		return FailurePermanent
	default:
		// RPC timeouts, network errors, temporary energy shortage.
		return FailureTransient
	}
}

// FailureReason maps a permanent error to its operator-facing reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrInsufficientResources):
		return entities.FailureReasonInsufficientResources
	case errors.Is(err, domainerrors.ErrBelowMinimum):
		return entities.FailureReasonDustAmount
	case errors.Is(err, domainerrors.ErrSignatureRejected):
		return entities.FailureReasonSignatureRejected
	case errors.Is(err, domainerrors.ErrDerivationMismatch),
		errors.Is(err, domainerrors.ErrNotFound):
		return entities.FailureReasonInvalidAddress
	case errors.Is(err, domainerrors.ErrSeedDecryptionFailed):
		return "seed-decryption-failed"
	default:
		return entities.FailureReasonMaxRetriesExceeded
	}
}

// HandleFailure resolves a PROCESSING entry after a failed execution.
// Transient failures go back to QUEUED with a not-before timestamp until the
// attempt cap converts them to a terminal failure.
func (c *RetryController) HandleFailure(ctx context.Context, entry *entities.SweepQueueEntry, execErr error) error {
	class := Classify(execErr)

	if class == FailureFatal {
		logger.Error(ctx, "fatal sweep failure, halting tenant sweeps",
			zap.String("entry_id", entry.ID.String()),
			zap.String("tenant_id", entry.TenantID.String()),
			zap.Error(execErr))
		// Disable the tenant so its queued siblings are held back instead of
		// burning through the same vault fault. Operator re-enables via the
		// tenant sweep-enabled endpoint.
		if err := c.walletRepo.SetSweepEnabled(ctx, entry.TenantID, false); err != nil {
			logger.Error(ctx, "failed to disable sweeping for tenant",
				zap.String("tenant_id", entry.TenantID.String()),
				zap.Error(err))
		}
	}

	if class != FailureTransient {
		reason := FailureReason(execErr)
		c.metrics.SweepFailed(reason)
		return c.queueRepo.Fail(ctx, entry.ID, reason)
	}

	if entry.Attempts+1 >= c.maxAttempts {
		c.metrics.SweepFailed(entities.FailureReasonMaxRetriesExceeded)
		return c.queueRepo.Fail(ctx, entry.ID, entities.FailureReasonMaxRetriesExceeded)
	}

	notBefore := time.Now().Add(c.Backoff(entry.Attempts))
	c.metrics.SweepRetried()
	logger.Warn(ctx, "transient sweep failure, re-queued",
		zap.String("entry_id", entry.ID.String()),
		zap.Int("attempts", entry.Attempts+1),
		zap.Time("not_before", notBefore),
		zap.Error(execErr))
	return c.queueRepo.Requeue(ctx, entry.ID, execErr.Error(), notBefore)
}

// Backoff computes the delay before retry attempt attempts+1: exponential
// with ±20% jitter, capped.
func (c *RetryController) Backoff(attempts int) time.Duration {
	d := c.backoffBase << uint(attempts)
	if d > c.backoffCap || d <= 0 {
		d = c.backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5+1) - int64(d)/10)
	return d + jitter
}

// ReconcilePending resolves PENDING log rows against chain state. This runs
// before any address may be re-queued, upholding the no-double-sweep
// invariant: a broadcast whose outcome is unknown blocks its address until
// the chain has been consulted.
func (c *RetryController) ReconcilePending(ctx context.Context, limit int) error {
	pending, err := c.logRepo.ListPending(ctx, limit)
	if err != nil {
		return err
	}

	for _, row := range pending {
		receipt, err := c.chain.GetTransactionReceipt(ctx, row.TxHash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				if time.Since(row.CreatedAt) > c.reconcileGrace {
					// Dropped from the mempool. Closing the row unblocks the
					// address; the rebuilt sweep re-reads the live balance,
					// so a late landing of this tx makes the retry a no-op.
					if resErr := c.logRepo.Resolve(ctx, row.ID, entities.SweepLogStatusFailed, entities.FailureReasonSuperseded); resErr != nil {
						logger.Error(ctx, "failed to resolve superseded sweep log",
							zap.String("tx_hash", row.TxHash), zap.Error(resErr))
						continue
					}
					c.metrics.LogResolved("superseded")
				}
				continue
			}
			logger.Warn(ctx, "receipt lookup failed during reconciliation",
				zap.String("tx_hash", row.TxHash), zap.Error(err))
			continue
		}

		if receipt.Status == types.ReceiptStatusSuccessful {
			if resErr := c.logRepo.Resolve(ctx, row.ID, entities.SweepLogStatusConfirmed, ""); resErr != nil {
				logger.Error(ctx, "failed to confirm sweep log",
					zap.String("tx_hash", row.TxHash), zap.Error(resErr))
				continue
			}
			c.metrics.LogResolved("confirmed")
			logger.Info(ctx, "sweep confirmed",
				zap.String("address", row.Address),
				zap.String("tx_hash", row.TxHash))
			continue
		}

		// Mined but reverted: treated as transient, the address may be
		// re-queued by the next observation once this row is closed.
		if resErr := c.logRepo.Resolve(ctx, row.ID, entities.SweepLogStatusFailed, "reverted"); resErr != nil {
			logger.Error(ctx, "failed to mark reverted sweep log",
				zap.String("tx_hash", row.TxHash), zap.Error(resErr))
			continue
		}
		c.metrics.LogResolved("reverted")
	}
	return nil
}
