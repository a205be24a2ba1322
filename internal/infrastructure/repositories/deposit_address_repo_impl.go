package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/infrastructure/models"
)

// DepositAddressRepository implements deposit address data operations
type DepositAddressRepository struct {
	db *gorm.DB
}

// NewDepositAddressRepository creates a new deposit address repository
func NewDepositAddressRepository(db *gorm.DB) *DepositAddressRepository {
	return &DepositAddressRepository{db: db}
}

// Create creates a new deposit address
func (r *DepositAddressRepository) Create(ctx context.Context, addr *entities.DepositAddress) error {
	if addr.ID == uuid.Nil {
		addr.ID = uuid.New()
	}
	addr.CreatedAt = time.Now()
	addr.UpdatedAt = addr.CreatedAt

	m := &models.DepositAddress{
		ID:              addr.ID,
		TenantID:        addr.TenantID,
		UserID:          addr.UserID,
		DerivationIndex: addr.DerivationIndex,
		Address:         addr.Address,
		IsActive:        addr.IsActive,
		CreatedAt:       addr.CreatedAt,
		UpdatedAt:       addr.UpdatedAt,
	}
	if addr.MinSweepAmount.Valid {
		v := addr.MinSweepAmount.String
		m.MinSweepAmount = &v
	}

	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a deposit address by ID
func (r *DepositAddressRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.DepositAddress, error) {
	var m models.DepositAddress
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toDepositAddressEntity(&m), nil
}

// GetByUser gets the deposit address assigned to a user, if any
func (r *DepositAddressRepository) GetByUser(ctx context.Context, tenantID, userID uuid.UUID) (*entities.DepositAddress, error) {
	var m models.DepositAddress
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toDepositAddressEntity(&m), nil
}

// GetByAddress gets a deposit address by its on-chain address
func (r *DepositAddressRepository) GetByAddress(ctx context.Context, address string) (*entities.DepositAddress, error) {
	var m models.DepositAddress
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toDepositAddressEntity(&m), nil
}

// ListByTenant lists deposit addresses for a tenant with pagination
func (r *DepositAddressRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*entities.DepositAddress, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DepositAddress{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.DepositAddress
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("derivation_index ASC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	addrs := make([]*entities.DepositAddress, 0, len(ms))
	for i := range ms {
		addrs = append(addrs, toDepositAddressEntity(&ms[i]))
	}
	return addrs, int(total), nil
}

// Deactivate marks an address inactive. History is kept; the row is never deleted.
func (r *DepositAddressRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.DepositAddress{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func toDepositAddressEntity(m *models.DepositAddress) *entities.DepositAddress {
	e := &entities.DepositAddress{
		ID:              m.ID,
		TenantID:        m.TenantID,
		UserID:          m.UserID,
		DerivationIndex: m.DerivationIndex,
		Address:         m.Address,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.MinSweepAmount != nil {
		e.MinSweepAmount = null.StringFrom(*m.MinSweepAmount)
	}
	return e
}
