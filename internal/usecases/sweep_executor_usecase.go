package usecases

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	"custody-sweep.backend/internal/observability"
	"custody-sweep.backend/pkg/crypto"
	"custody-sweep.backend/pkg/logger"
)

// transferGasLimit is the gas for a plain native transfer.
const transferGasLimit = 21000

// SweepExecutor drives one claimed queue entry through build, sign and
// broadcast. It owns the one critical ordering rule of the engine: the
// pending log row is written after broadcast acceptance and before the
// worker's claim is released.
type SweepExecutor struct {
	addrRepo         repositories.DepositAddressRepository
	walletRepo       repositories.MasterWalletRepository
	queueRepo        repositories.SweepQueueRepository
	logRepo          repositories.SweepLogRepository
	vault            *VaultUsecase
	chain            ChainClient
	energy           EnergyProvisioner
	broadcastTimeout time.Duration
	metrics          *observability.Metrics
}

// NewSweepExecutor creates a new sweep executor
func NewSweepExecutor(
	addrRepo repositories.DepositAddressRepository,
	walletRepo repositories.MasterWalletRepository,
	queueRepo repositories.SweepQueueRepository,
	logRepo repositories.SweepLogRepository,
	vault *VaultUsecase,
	chain ChainClient,
	energy EnergyProvisioner,
	broadcastTimeout time.Duration,
	metrics *observability.Metrics,
) *SweepExecutor {
	return &SweepExecutor{
		addrRepo:         addrRepo,
		walletRepo:       walletRepo,
		queueRepo:        queueRepo,
		logRepo:          logRepo,
		vault:            vault,
		chain:            chain,
		energy:           energy,
		broadcastTimeout: broadcastTimeout,
		metrics:          metrics,
	}
}

// Execute processes a PROCESSING entry to a terminal queue state on success.
// On error the entry is left PROCESSING for the retry controller to resolve.
func (u *SweepExecutor) Execute(ctx context.Context, entry *entities.SweepQueueEntry) error {
	start := time.Now()

	addr, err := u.addrRepo.GetByID(ctx, entry.AddressID)
	if err != nil {
		return err
	}
	wallet, err := u.walletRepo.GetByTenantID(ctx, addr.TenantID)
	if err != nil {
		return err
	}

	// Re-read the live balance: whatever already moved (a prior ambiguous
	// broadcast that landed) must not be swept again.
	balance, err := u.chain.GetBalance(ctx, addr.Address)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		logger.Info(ctx, "nothing left to sweep, completing entry",
			zap.String("address", addr.Address))
		u.metrics.SweepCompleted()
		return u.queueRepo.Complete(ctx, entry.ID)
	}

	gasPrice, err := u.chain.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))

	capacity, err := u.energy.EnsureCapacity(ctx, addr.Address, gasCost)
	if err != nil {
		return err
	}
	if !capacity.OK {
		return domainerrors.ErrInsufficientResources
	}

	feeCost := new(big.Int).Set(gasCost)
	if capacity.FallbackCost != nil && capacity.FallbackCost.Sign() > 0 {
		feeCost.Add(feeCost, capacity.FallbackCost)
	}

	value := new(big.Int).Sub(balance, feeCost)
	if value.Sign() <= 0 {
		return fmt.Errorf("%w: balance %s does not cover fee %s",
			domainerrors.ErrBelowMinimum, balance, feeCost)
	}

	seed, err := u.vault.DecryptSeed(ctx, addr.TenantID)
	if err != nil {
		return err
	}
	priv, derived, err := u.vault.DeriveChild(seed, addr.DerivationIndex)
	crypto.Zero(seed)
	if err != nil {
		return err
	}
	defer ZeroPrivateKey(priv)

	if derived != addr.Address {
		return domainerrors.ErrDerivationMismatch
	}

	nonce, err := u.chain.PendingNonceAt(ctx, addr.Address)
	if err != nil {
		return err
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(wallet.CollectionAddress), value, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(u.chain.ChainID()), priv)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrSignatureRejected, err)
	}

	broadcastCtx, cancel := context.WithTimeout(ctx, u.broadcastTimeout)
	defer cancel()
	if err := u.chain.SendTransaction(broadcastCtx, signed); err != nil {
		return err
	}

	// Broadcast accepted. The pending row must land before the claim is
	// released; a crash in between is the one window reconciliation covers.
	sweepLog := &entities.SweepLog{
		TenantID:    addr.TenantID,
		Address:     addr.Address,
		Destination: wallet.CollectionAddress,
		Amount:      value.String(),
		FeeCost:     feeCost.String(),
		TxHash:      signed.Hash().Hex(),
		Status:      entities.SweepLogStatusPending,
		Attempts:    entry.Attempts + 1,
	}
	if err := u.logRepo.Append(ctx, sweepLog); err != nil {
		logger.Error(ctx, "broadcast succeeded but pending log write failed",
			zap.String("tx_hash", sweepLog.TxHash), zap.Error(err))
		return err
	}

	u.metrics.ObserveBroadcast(time.Since(start).Seconds())
	u.metrics.SweepCompleted()
	logger.Info(ctx, "sweep broadcast",
		zap.String("address", addr.Address),
		zap.String("destination", wallet.CollectionAddress),
		zap.String("amount", value.String()),
		zap.String("tx_hash", sweepLog.TxHash))

	return u.queueRepo.Complete(ctx, entry.ID)
}
