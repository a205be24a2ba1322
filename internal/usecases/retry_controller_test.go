package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/usecases"
)

func newRetryController(queueRepo *MockSweepQueueRepository, logRepo *MockSweepLogRepository, walletRepo *MockMasterWalletRepository, chain *MockChainClient) *usecases.RetryController {
	return usecases.NewRetryController(
		queueRepo, logRepo, walletRepo, chain,
		3,             // max attempts
		time.Second,   // backoff base
		8*time.Second, // backoff cap
		10*time.Minute,
		nil,
	)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want usecases.FailureClass
	}{
		{"seed decryption", domainerrors.ErrSeedDecryptionFailed, usecases.FailureFatal},
		{"derivation mismatch", domainerrors.ErrDerivationMismatch, usecases.FailureFatal},
		{"insufficient resources", domainerrors.ErrInsufficientResources, usecases.FailurePermanent},
		{"below minimum wrapped", errors.Join(domainerrors.ErrBelowMinimum, errors.New("ctx")), usecases.FailurePermanent},
		{"signature rejected", domainerrors.ErrSignatureRejected, usecases.FailurePermanent},
		{"missing row", domainerrors.ErrNotFound, usecases.FailurePermanent},
		{"rpc timeout", context.DeadlineExceeded, usecases.FailureTransient},
		{"network error", errors.New("connection refused"), usecases.FailureTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecases.Classify(tt.err))
		})
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, entities.FailureReasonInsufficientResources, usecases.FailureReason(domainerrors.ErrInsufficientResources))
	assert.Equal(t, entities.FailureReasonDustAmount, usecases.FailureReason(domainerrors.ErrBelowMinimum))
	assert.Equal(t, entities.FailureReasonSignatureRejected, usecases.FailureReason(domainerrors.ErrSignatureRejected))
	assert.Equal(t, entities.FailureReasonInvalidAddress, usecases.FailureReason(domainerrors.ErrDerivationMismatch))
}

func TestRetryController_TransientRequeued(t *testing.T) {
	queueRepo := new(MockSweepQueueRepository)
	c := newRetryController(queueRepo, new(MockSweepLogRepository), new(MockMasterWalletRepository), new(MockChainClient))

	entry := &entities.SweepQueueEntry{ID: uuid.New(), TenantID: uuid.New(), Attempts: 0}
	queueRepo.On("Requeue", mock.Anything, entry.ID, "connection refused",
		mock.MatchedBy(func(nb time.Time) bool { return nb.After(time.Now()) })).Return(nil).Once()

	require.NoError(t, c.HandleFailure(context.Background(), entry, errors.New("connection refused")))
	queueRepo.AssertExpectations(t)
}

func TestRetryController_TransientAtCapFails(t *testing.T) {
	queueRepo := new(MockSweepQueueRepository)
	c := newRetryController(queueRepo, new(MockSweepLogRepository), new(MockMasterWalletRepository), new(MockChainClient))

	// third attempt just failed (two retries already burned); cap is 3
	entry := &entities.SweepQueueEntry{ID: uuid.New(), TenantID: uuid.New(), Attempts: 2}
	queueRepo.On("Fail", mock.Anything, entry.ID, entities.FailureReasonMaxRetriesExceeded).Return(nil).Once()

	require.NoError(t, c.HandleFailure(context.Background(), entry, errors.New("connection refused")))
	queueRepo.AssertExpectations(t)
	queueRepo.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryController_PermanentFailsImmediately(t *testing.T) {
	queueRepo := new(MockSweepQueueRepository)
	walletRepo := new(MockMasterWalletRepository)
	c := newRetryController(queueRepo, new(MockSweepLogRepository), walletRepo, new(MockChainClient))

	entry := &entities.SweepQueueEntry{ID: uuid.New(), TenantID: uuid.New(), Attempts: 0}
	queueRepo.On("Fail", mock.Anything, entry.ID, entities.FailureReasonDustAmount).Return(nil).Once()

	require.NoError(t, c.HandleFailure(context.Background(), entry, domainerrors.ErrBelowMinimum))
	queueRepo.AssertExpectations(t)
	// permanent failures are entry-scoped, the tenant keeps sweeping
	walletRepo.AssertNotCalled(t, "SetSweepEnabled", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryController_FatalFailsAndHaltsTenant(t *testing.T) {
	queueRepo := new(MockSweepQueueRepository)
	walletRepo := new(MockMasterWalletRepository)
	c := newRetryController(queueRepo, new(MockSweepLogRepository), walletRepo, new(MockChainClient))

	entry := &entities.SweepQueueEntry{ID: uuid.New(), TenantID: uuid.New(), Attempts: 0}
	walletRepo.On("SetSweepEnabled", mock.Anything, entry.TenantID, false).Return(nil).Once()
	queueRepo.On("Fail", mock.Anything, entry.ID, "seed-decryption-failed").Return(nil).Once()

	// a vault fault would hit every sibling entry of the tenant the same
	// way, so the whole tenant is disabled until an operator intervenes
	require.NoError(t, c.HandleFailure(context.Background(), entry, domainerrors.ErrSeedDecryptionFailed))
	queueRepo.AssertExpectations(t)
	walletRepo.AssertExpectations(t)
	queueRepo.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryController_FatalStillFailsEntryWhenHaltErrors(t *testing.T) {
	queueRepo := new(MockSweepQueueRepository)
	walletRepo := new(MockMasterWalletRepository)
	c := newRetryController(queueRepo, new(MockSweepLogRepository), walletRepo, new(MockChainClient))

	entry := &entities.SweepQueueEntry{ID: uuid.New(), TenantID: uuid.New(), Attempts: 0}
	walletRepo.On("SetSweepEnabled", mock.Anything, entry.TenantID, false).Return(errors.New("db down")).Once()
	queueRepo.On("Fail", mock.Anything, entry.ID, entities.FailureReasonInvalidAddress).Return(nil).Once()

	require.NoError(t, c.HandleFailure(context.Background(), entry, domainerrors.ErrDerivationMismatch))
	queueRepo.AssertExpectations(t)
}

func TestRetryController_BackoffBounds(t *testing.T) {
	c := newRetryController(new(MockSweepQueueRepository), new(MockSweepLogRepository), new(MockMasterWalletRepository), new(MockChainClient))

	for i := 0; i < 50; i++ {
		// first retry: base 1s, jitter within ±20%
		d := c.Backoff(0)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)

		// deep retry counts stay at the cap
		d = c.Backoff(30)
		assert.LessOrEqual(t, d, 8*time.Second+1600*time.Millisecond)
		assert.GreaterOrEqual(t, d, 8*time.Second-1600*time.Millisecond)
	}
}

func pendingRow(age time.Duration) *entities.SweepLog {
	return &entities.SweepLog{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Address:   "0xdeposit",
		TxHash:    "0xtx",
		Status:    entities.SweepLogStatusPending,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestRetryController_ReconcileConfirms(t *testing.T) {
	logRepo := new(MockSweepLogRepository)
	chain := new(MockChainClient)
	c := newRetryController(new(MockSweepQueueRepository), logRepo, new(MockMasterWalletRepository), chain)

	row := pendingRow(time.Minute)
	logRepo.On("ListPending", mock.Anything, 100).Return([]*entities.SweepLog{row}, nil)
	chain.On("GetTransactionReceipt", mock.Anything, row.TxHash).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)
	logRepo.On("Resolve", mock.Anything, row.ID, entities.SweepLogStatusConfirmed, "").Return(nil).Once()

	require.NoError(t, c.ReconcilePending(context.Background(), 100))
	logRepo.AssertExpectations(t)
}

func TestRetryController_ReconcileReverted(t *testing.T) {
	logRepo := new(MockSweepLogRepository)
	chain := new(MockChainClient)
	c := newRetryController(new(MockSweepQueueRepository), logRepo, new(MockMasterWalletRepository), chain)

	row := pendingRow(time.Minute)
	logRepo.On("ListPending", mock.Anything, 100).Return([]*entities.SweepLog{row}, nil)
	chain.On("GetTransactionReceipt", mock.Anything, row.TxHash).
		Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)
	logRepo.On("Resolve", mock.Anything, row.ID, entities.SweepLogStatusFailed, "reverted").Return(nil).Once()

	require.NoError(t, c.ReconcilePending(context.Background(), 100))
	logRepo.AssertExpectations(t)
}

func TestRetryController_ReconcileWaitsInsideGrace(t *testing.T) {
	logRepo := new(MockSweepLogRepository)
	chain := new(MockChainClient)
	c := newRetryController(new(MockSweepQueueRepository), logRepo, new(MockMasterWalletRepository), chain)

	row := pendingRow(time.Minute)
	logRepo.On("ListPending", mock.Anything, 100).Return([]*entities.SweepLog{row}, nil)
	chain.On("GetTransactionReceipt", mock.Anything, row.TxHash).Return(nil, ethereum.NotFound)

	require.NoError(t, c.ReconcilePending(context.Background(), 100))
	logRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryController_ReconcileSupersedesAfterGrace(t *testing.T) {
	logRepo := new(MockSweepLogRepository)
	chain := new(MockChainClient)
	c := newRetryController(new(MockSweepQueueRepository), logRepo, new(MockMasterWalletRepository), chain)

	row := pendingRow(time.Hour)
	logRepo.On("ListPending", mock.Anything, 100).Return([]*entities.SweepLog{row}, nil)
	chain.On("GetTransactionReceipt", mock.Anything, row.TxHash).Return(nil, ethereum.NotFound)
	logRepo.On("Resolve", mock.Anything, row.ID, entities.SweepLogStatusFailed, entities.FailureReasonSuperseded).Return(nil).Once()

	require.NoError(t, c.ReconcilePending(context.Background(), 100))
	logRepo.AssertExpectations(t)
}

func TestRetryController_ReconcileSkipsLookupErrors(t *testing.T) {
	logRepo := new(MockSweepLogRepository)
	chain := new(MockChainClient)
	c := newRetryController(new(MockSweepQueueRepository), logRepo, new(MockMasterWalletRepository), chain)

	broken := pendingRow(time.Minute)
	healthy := pendingRow(time.Minute)
	healthy.TxHash = "0xtx2"
	logRepo.On("ListPending", mock.Anything, 100).Return([]*entities.SweepLog{broken, healthy}, nil)
	chain.On("GetTransactionReceipt", mock.Anything, broken.TxHash).Return(nil, errors.New("rpc unavailable"))
	chain.On("GetTransactionReceipt", mock.Anything, healthy.TxHash).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)
	logRepo.On("Resolve", mock.Anything, healthy.ID, entities.SweepLogStatusConfirmed, "").Return(nil).Once()

	// one bad RPC answer must not stall the rest of the pass
	require.NoError(t, c.ReconcilePending(context.Background(), 100))
	logRepo.AssertExpectations(t)
}
