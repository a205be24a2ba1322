package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/infrastructure/models"
)

// MasterWalletRepository implements master wallet data operations
type MasterWalletRepository struct {
	db *gorm.DB
}

// NewMasterWalletRepository creates a new master wallet repository
func NewMasterWalletRepository(db *gorm.DB) *MasterWalletRepository {
	return &MasterWalletRepository{db: db}
}

// Create creates a new master wallet
func (r *MasterWalletRepository) Create(ctx context.Context, wallet *entities.MasterWallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	wallet.CreatedAt = time.Now()
	wallet.UpdatedAt = wallet.CreatedAt

	m := &models.MasterWallet{
		ID:                  wallet.ID,
		TenantID:            wallet.TenantID,
		EncryptedSeed:       wallet.EncryptedSeed,
		LastDerivationIndex: wallet.LastDerivationIndex,
		CollectionAddress:   wallet.CollectionAddress,
		MinSweepAmount:      wallet.MinSweepAmount,
		SweepEnabled:        wallet.SweepEnabled,
		CreatedAt:           wallet.CreatedAt,
		UpdatedAt:           wallet.UpdatedAt,
	}

	return r.db.WithContext(ctx).Create(m).Error
}

// GetByTenantID gets the master wallet for a tenant
func (r *MasterWalletRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*entities.MasterWallet, error) {
	var m models.MasterWallet
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toMasterWalletEntity(&m), nil
}

// indexClaimRetries bounds how many times a claim re-reads the counter when
// racing with another allocator.
const indexClaimRetries = 5

// NextDerivationIndex atomically claims the next free derivation index. The
// increment is a guarded UPDATE checking the counter it read, so concurrent
// allocators for the same tenant resolve to distinct indices. The counter is
// bumped before the index is handed out and never rolled back; a failed
// caller burns an index rather than risking reuse.
func (r *MasterWalletRepository) NextDerivationIndex(ctx context.Context, tenantID uuid.UUID) (uint32, error) {
	for i := 0; i < indexClaimRetries; i++ {
		var m models.MasterWallet
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ?", tenantID).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, domainerrors.ErrNotFound
			}
			return 0, err
		}

		next := m.LastDerivationIndex + 1
		result := r.db.WithContext(ctx).Model(&models.MasterWallet{}).
			Where("id = ? AND last_derivation_index = ?", m.ID, m.LastDerivationIndex).
			Updates(map[string]interface{}{
				"last_derivation_index": next,
				"updated_at":            time.Now(),
			})
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected == 1 {
			return next, nil
		}
		// lost the race, re-read the counter
	}
	return 0, domainerrors.ErrIndexContention
}

// SetSweepEnabled toggles sweeping for a tenant
func (r *MasterWalletRepository) SetSweepEnabled(ctx context.Context, tenantID uuid.UUID, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&models.MasterWallet{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{"sweep_enabled": enabled, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func toMasterWalletEntity(m *models.MasterWallet) *entities.MasterWallet {
	return &entities.MasterWallet{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		EncryptedSeed:       m.EncryptedSeed,
		LastDerivationIndex: m.LastDerivationIndex,
		CollectionAddress:   m.CollectionAddress,
		MinSweepAmount:      m.MinSweepAmount,
		SweepEnabled:        m.SweepEnabled,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
