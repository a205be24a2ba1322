package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"custody-sweep.backend/internal/config"
	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	"custody-sweep.backend/internal/observability"
	"custody-sweep.backend/pkg/logger"
)

// EligibilityUsecase decides which addresses qualify for sweeping. It is the
// only writer that creates queue entries; everything else feeds it.
type EligibilityUsecase struct {
	addrRepo   repositories.DepositAddressRepository
	walletRepo repositories.MasterWalletRepository
	queueRepo  repositories.SweepQueueRepository
	logRepo    repositories.SweepLogRepository
	chain      ChainClient
	locker     SweepLocker
	cfg        config.SweepConfig
	minConf    uint64
	metrics    *observability.Metrics
}

// NewEligibilityUsecase creates a new eligibility usecase
func NewEligibilityUsecase(
	addrRepo repositories.DepositAddressRepository,
	walletRepo repositories.MasterWalletRepository,
	queueRepo repositories.SweepQueueRepository,
	logRepo repositories.SweepLogRepository,
	chain ChainClient,
	locker SweepLocker,
	cfg config.SweepConfig,
	minConfirmations uint64,
	metrics *observability.Metrics,
) *EligibilityUsecase {
	return &EligibilityUsecase{
		addrRepo:   addrRepo,
		walletRepo: walletRepo,
		queueRepo:  queueRepo,
		logRepo:    logRepo,
		chain:      chain,
		locker:     locker,
		cfg:        cfg,
		minConf:    minConfirmations,
		metrics:    metrics,
	}
}

// EvaluateObservation processes one (address, balance, confirmations) signal
// from the chain watcher. Returns the enqueued entry, or nil when the
// address does not currently qualify. Dedupe and reconciliation-gate misses
// are not errors; replaying the same observation is expected and harmless.
func (u *EligibilityUsecase) EvaluateObservation(ctx context.Context, obs *entities.BalanceObservation) (*entities.SweepQueueEntry, error) {
	if obs.Confirmations < u.minConf {
		return nil, nil
	}

	if _, ok := new(big.Int).SetString(obs.Balance, 10); !ok {
		return nil, domainerrors.BadRequest(fmt.Sprintf("invalid balance %q", obs.Balance))
	}

	addr, err := u.addrRepo.GetByAddress(ctx, obs.Address)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			// Not one of ours; watchers may be configured wider than one tenant.
			return nil, nil
		}
		return nil, err
	}
	if !addr.IsActive {
		return nil, nil
	}

	wallet, err := u.walletRepo.GetByTenantID(ctx, addr.TenantID)
	if err != nil {
		return nil, err
	}
	if !wallet.SweepEnabled {
		return nil, nil
	}

	// The observation is only a trigger; the chain is the amount of record.
	// A stale replay arriving after the sweep confirmed sees the drained
	// balance here and drops out instead of re-enqueueing.
	balance, err := u.chain.GetBalance(ctx, obs.Address)
	if err != nil {
		return nil, err
	}

	sweepable := new(big.Int).Sub(balance, u.cfg.FeeReserve)
	if sweepable.Sign() <= 0 {
		return nil, nil
	}

	min, ok := new(big.Int).SetString(addr.MinSweepAmountOrDefault(wallet.MinSweepAmount), 10)
	if !ok {
		min = big.NewInt(0)
	}
	if sweepable.Cmp(min) < 0 {
		return nil, nil
	}

	priority := entities.SweepPriorityNormal
	if u.cfg.HighValueThreshold != nil && sweepable.Cmp(u.cfg.HighValueThreshold) >= 0 {
		priority = entities.SweepPriorityHigh
	}

	entry, err := u.enqueue(ctx, addr, sweepable, priority, false)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyQueued) || errors.Is(err, domainerrors.ErrPendingUnresolved) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// RequestManualSweep injects an operator-triggered sweep. force bypasses the
// minimum-amount check but never the dedupe or reconciliation gates.
func (u *EligibilityUsecase) RequestManualSweep(ctx context.Context, address string, force bool) (*entities.SweepQueueEntry, error) {
	return u.requestSweep(ctx, address, entities.SweepPriorityNormal, force)
}

// RequestBatchSweep injects sweeps for several addresses at one priority.
// Addresses that fail eligibility or are already queued are skipped, not
// fatal for the rest of the batch.
func (u *EligibilityUsecase) RequestBatchSweep(ctx context.Context, addresses []string, priority entities.SweepPriority) ([]*entities.SweepQueueEntry, error) {
	entries := make([]*entities.SweepQueueEntry, 0, len(addresses))
	for _, address := range addresses {
		entry, err := u.requestSweep(ctx, address, priority, false)
		if err != nil {
			logger.Warn(ctx, "batch sweep entry skipped",
				zap.String("address", address), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RequestEmergencySweep injects an emergency-priority sweep.
func (u *EligibilityUsecase) RequestEmergencySweep(ctx context.Context, address, reason string) (*entities.SweepQueueEntry, error) {
	logger.Warn(ctx, "emergency sweep requested",
		zap.String("address", address), zap.String("reason", reason))
	return u.requestSweep(ctx, address, entities.SweepPriorityEmergency, true)
}

func (u *EligibilityUsecase) requestSweep(ctx context.Context, address string, priority entities.SweepPriority, force bool) (*entities.SweepQueueEntry, error) {
	addr, err := u.addrRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	wallet, err := u.walletRepo.GetByTenantID(ctx, addr.TenantID)
	if err != nil {
		return nil, err
	}

	balance, err := u.chain.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	sweepable := new(big.Int).Sub(balance, u.cfg.FeeReserve)
	if sweepable.Sign() <= 0 {
		return nil, domainerrors.ErrBelowMinimum
	}
	if !force {
		min, ok := new(big.Int).SetString(addr.MinSweepAmountOrDefault(wallet.MinSweepAmount), 10)
		if ok && sweepable.Cmp(min) < 0 {
			return nil, domainerrors.ErrBelowMinimum
		}
	}

	return u.enqueue(ctx, addr, sweepable, priority, force)
}

// enqueue applies the two gates that protect against double-sweep: no live
// queue entry and no unresolved pending broadcast for the address. The redis
// lock narrows the race window across evaluator instances; the queue store's
// transactional check is the invariant of record.
func (u *EligibilityUsecase) enqueue(ctx context.Context, addr *entities.DepositAddress, amount *big.Int, priority entities.SweepPriority, force bool) (*entities.SweepQueueEntry, error) {
	acquired, err := u.locker.Acquire(ctx, addr.Address, addr.ID.String())
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domainerrors.ErrAlreadyQueued
	}
	defer func() {
		if releaseErr := u.locker.Release(ctx, addr.Address); releaseErr != nil {
			logger.Warn(ctx, "failed to release sweep lock",
				zap.String("address", addr.Address), zap.Error(releaseErr))
		}
	}()

	live, err := u.queueRepo.HasLive(ctx, addr.ID)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, domainerrors.ErrAlreadyQueued
	}

	unresolved, err := u.logRepo.HasUnresolved(ctx, addr.Address)
	if err != nil {
		return nil, err
	}
	if unresolved {
		return nil, domainerrors.ErrPendingUnresolved
	}

	entry := &entities.SweepQueueEntry{
		AddressID:      addr.ID,
		TenantID:       addr.TenantID,
		ObservedAmount: amount.String(),
		Priority:       priority,
		Force:          force,
	}
	if err := u.queueRepo.Enqueue(ctx, entry); err != nil {
		return nil, err
	}

	u.metrics.SweepEnqueued(priority.String())
	logger.Info(ctx, "sweep enqueued",
		zap.String("address", addr.Address),
		zap.String("amount", entry.ObservedAmount),
		zap.String("priority", priority.String()))
	return entry, nil
}
