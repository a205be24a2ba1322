package usecases

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	pkgcrypto "custody-sweep.backend/pkg/crypto"
)

// AllocatorUsecase assigns derivation indices to users. Indices are
// monotonic and never reused; the address/index pair is immutable once
// persisted.
type AllocatorUsecase struct {
	walletRepo repositories.MasterWalletRepository
	addrRepo   repositories.DepositAddressRepository
	vault      *VaultUsecase
}

// NewAllocatorUsecase creates a new allocator usecase
func NewAllocatorUsecase(
	walletRepo repositories.MasterWalletRepository,
	addrRepo repositories.DepositAddressRepository,
	vault *VaultUsecase,
) *AllocatorUsecase {
	return &AllocatorUsecase{
		walletRepo: walletRepo,
		addrRepo:   addrRepo,
		vault:      vault,
	}
}

// AllocateNext returns the user's deposit address, creating one on first
// request. Idempotent: a second call for the same user returns the existing
// row. Concurrent first calls for the same user race on the unique
// (tenant, user) index; the loser re-reads the winner's row. An index burned
// by a lost race is never handed out again.
func (u *AllocatorUsecase) AllocateNext(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error) {
	existing, err := u.addrRepo.GetByUser(ctx, tenantID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	index, err := u.walletRepo.NextDerivationIndex(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	seed, err := u.vault.DecryptSeed(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	address, err := u.vault.DeriveAddress(seed, index)
	pkgcrypto.Zero(seed)
	if err != nil {
		return nil, err
	}

	addr := &entities.DepositAddress{
		TenantID:        tenantID,
		UserID:          userID,
		DerivationIndex: index,
		Address:         address,
		IsActive:        true,
	}
	if err := u.addrRepo.Create(ctx, addr); err != nil {
		// Lost a concurrent-allocation race for this user; their row exists now.
		if winner, getErr := u.addrRepo.GetByUser(ctx, tenantID, userID); getErr == nil {
			return winner, nil
		}
		return nil, err
	}
	return addr, nil
}

// GetByUser returns the user's deposit address without allocating
func (u *AllocatorUsecase) GetByUser(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error) {
	return u.addrRepo.GetByUser(ctx, tenantID, userID)
}

// ListByTenant lists a tenant's deposit addresses
func (u *AllocatorUsecase) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*entities.DepositAddress, int, error) {
	return u.addrRepo.ListByTenant(ctx, tenantID, limit, offset)
}

// Deactivate excludes an address from future eligibility scans. History and
// the burned index are kept.
func (u *AllocatorUsecase) Deactivate(ctx context.Context, id uuid.UUID) error {
	return u.addrRepo.Deactivate(ctx, id)
}
