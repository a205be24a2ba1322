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

// SweepLogRepository implements the append-only sweep attempt log
type SweepLogRepository struct {
	db *gorm.DB
}

// NewSweepLogRepository creates a new sweep log repository
func NewSweepLogRepository(db *gorm.DB) *SweepLogRepository {
	return &SweepLogRepository{db: db}
}

// Append writes a new log row. Rows are never updated except through Resolve.
func (r *SweepLogRepository) Append(ctx context.Context, log *entities.SweepLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()

	m := &models.SweepLog{
		ID:          log.ID,
		TenantID:    log.TenantID,
		Address:     log.Address,
		Destination: log.Destination,
		Amount:      log.Amount,
		FeeCost:     log.FeeCost,
		TxHash:      log.TxHash,
		Status:      string(log.Status),
		Attempts:    log.Attempts,
		CreatedAt:   log.CreatedAt,
	}
	if log.Reason.Valid {
		v := log.Reason.String
		m.Reason = &v
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Resolve closes a PENDING row as CONFIRMED or FAILED. The status guard in
// the WHERE clause keeps resolution idempotent under concurrent reconcilers.
func (r *SweepLogRepository) Resolve(ctx context.Context, id uuid.UUID, status entities.SweepLogStatus, reason string) error {
	updates := map[string]interface{}{
		"status": string(status),
	}
	if status == entities.SweepLogStatusConfirmed {
		updates["confirmed_at"] = time.Now()
	}
	if reason != "" {
		updates["reason"] = reason
	}
	result := r.db.WithContext(ctx).Model(&models.SweepLog{}).
		Where("id = ? AND status = ?", id, string(entities.SweepLogStatusPending)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// GetByTxHash gets a log row by transaction hash
func (r *SweepLogRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.SweepLog, error) {
	var m models.SweepLog
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toSweepLogEntity(&m), nil
}

// HasUnresolved reports whether the address has a PENDING log row
func (r *SweepLogRepository) HasUnresolved(ctx context.Context, address string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SweepLog{}).
		Where("address = ? AND status = ?", address, string(entities.SweepLogStatusPending)).
		Count(&count).Error
	return count > 0, err
}

// ListPending lists PENDING rows oldest first for reconciliation
func (r *SweepLogRepository) ListPending(ctx context.Context, limit int) ([]*entities.SweepLog, error) {
	var ms []models.SweepLog
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.SweepLogStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	logs := make([]*entities.SweepLog, 0, len(ms))
	for i := range ms {
		logs = append(logs, toSweepLogEntity(&ms[i]))
	}
	return logs, nil
}

// ListByAddress lists log rows for an address with pagination
func (r *SweepLogRepository) ListByAddress(ctx context.Context, address string, limit, offset int) ([]*entities.SweepLog, int, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("address = ?", address) }, limit, offset)
}

// List lists all log rows with pagination
func (r *SweepLogRepository) List(ctx context.Context, limit, offset int) ([]*entities.SweepLog, int, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q }, limit, offset)
}

func (r *SweepLogRepository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB, limit, offset int) ([]*entities.SweepLog, int, error) {
	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&models.SweepLog{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.SweepLog
	if err := scope(r.db.WithContext(ctx)).Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]*entities.SweepLog, 0, len(ms))
	for i := range ms {
		logs = append(logs, toSweepLogEntity(&ms[i]))
	}
	return logs, int(total), nil
}

func toSweepLogEntity(m *models.SweepLog) *entities.SweepLog {
	e := &entities.SweepLog{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Address:     m.Address,
		Destination: m.Destination,
		Amount:      m.Amount,
		FeeCost:     m.FeeCost,
		TxHash:      m.TxHash,
		Status:      entities.SweepLogStatus(m.Status),
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt,
	}
	if m.Reason != nil {
		e.Reason = null.StringFrom(*m.Reason)
	}
	if m.ConfirmedAt != nil {
		e.ConfirmedAt = null.TimeFrom(*m.ConfirmedAt)
	}
	return e
}
