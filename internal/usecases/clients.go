package usecases

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"custody-sweep.backend/internal/infrastructure/blockchain"
)

// ChainClient is the injected chain access handle. Implemented by
// blockchain.EVMClient in production and by test doubles in unit tests.
type ChainClient interface {
	ChainID() *big.Int
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// EnergyProvisioner provisions network-resource capacity so sweeps avoid
// paying full network fees. May fail over to a paid-fee fallback.
type EnergyProvisioner interface {
	EnsureCapacity(ctx context.Context, address string, estimatedCost *big.Int) (*blockchain.CapacityResult, error)
}

// SweepLocker is the short-lived cross-process lock around enqueue.
type SweepLocker interface {
	Acquire(ctx context.Context, address, owner string) (bool, error)
	Release(ctx context.Context, address string) error
}
