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

// claimRetries bounds how many candidates a single claim call will race for
// before reporting an empty queue.
const claimRetries = 3

// SweepQueueRepository implements the durable sweep work queue
type SweepQueueRepository struct {
	db *gorm.DB
}

// NewSweepQueueRepository creates a new sweep queue repository
func NewSweepQueueRepository(db *gorm.DB) *SweepQueueRepository {
	return &SweepQueueRepository{db: db}
}

// Enqueue inserts a new QUEUED entry, enforcing the one-live-entry-per-address
// invariant inside a transaction.
func (r *SweepQueueRepository) Enqueue(ctx context.Context, entry *entities.SweepQueueEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Status = entities.SweepStatusQueued
	entry.EnqueuedAt = time.Now()
	entry.UpdatedAt = entry.EnqueuedAt

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live int64
		if err := tx.Model(&models.SweepQueueEntry{}).
			Where("address_id = ? AND status IN ?", entry.AddressID,
				[]string{string(entities.SweepStatusQueued), string(entities.SweepStatusProcessing)}).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return domainerrors.ErrAlreadyQueued
		}

		m := &models.SweepQueueEntry{
			ID:             entry.ID,
			AddressID:      entry.AddressID,
			TenantID:       entry.TenantID,
			ObservedAmount: entry.ObservedAmount,
			Priority:       int(entry.Priority),
			Status:         string(entry.Status),
			Force:          entry.Force,
			Attempts:       entry.Attempts,
			EnqueuedAt:     entry.EnqueuedAt,
			UpdatedAt:      entry.UpdatedAt,
		}
		if entry.NotBefore.Valid {
			t := entry.NotBefore.Time
			m.NotBefore = &t
		}
		return tx.Create(m).Error
	})
}

// ClaimNext claims the highest-priority ready entry for a worker. The claim
// is a guarded UPDATE checking status in the WHERE clause, so two workers
// racing for the same candidate resolve to exactly one winner.
func (r *SweepQueueRepository) ClaimNext(ctx context.Context, workerID string) (*entities.SweepQueueEntry, error) {
	for i := 0; i < claimRetries; i++ {
		m, err := r.nextReady(ctx)
		if err != nil {
			return nil, err
		}

		claimed, err := r.claim(ctx, m.ID, workerID)
		if err != nil {
			return nil, err
		}
		if claimed {
			return r.GetByID(ctx, m.ID)
		}
		// lost the race, try the next candidate
	}
	return nil, domainerrors.ErrNotFound
}

// ClaimBatch claims up to max ready entries for the tenant owning the first
// claimable entry, amortizing seed decryption across one broadcast cycle.
// With maxWait > 0, a lone normal-priority entry younger than maxWait is
// left queued so co-tenant entries can accumulate into a fuller batch.
func (r *SweepQueueRepository) ClaimBatch(ctx context.Context, workerID string, max int, maxWait time.Duration) ([]*entities.SweepQueueEntry, error) {
	if maxWait > 0 && max > 1 {
		hold, err := r.holdForBatchFill(ctx, max, maxWait)
		if err != nil {
			return nil, err
		}
		if hold {
			return nil, domainerrors.ErrNotFound
		}
	}

	first, err := r.ClaimNext(ctx, workerID)
	if err != nil {
		return nil, err
	}
	batch := []*entities.SweepQueueEntry{first}

	for len(batch) < max {
		var m models.SweepQueueEntry
		err := r.readyQuery(ctx).
			Where("tenant_id = ?", first.TenantID).
			First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		claimed, err := r.claim(ctx, m.ID, workerID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		entry, err := r.GetByID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		batch = append(batch, entry)
	}
	return batch, nil
}

// holdForBatchFill reports whether the claim should sit out a cycle: the best
// candidate is normal priority, younger than maxWait, and its tenant does not
// yet have enough ready entries to fill the batch. High and emergency entries
// never wait.
func (r *SweepQueueRepository) holdForBatchFill(ctx context.Context, max int, maxWait time.Duration) (bool, error) {
	m, err := r.nextReady(ctx)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if m.Priority > int(entities.SweepPriorityNormal) {
		return false, nil
	}
	if time.Since(m.EnqueuedAt) >= maxWait {
		return false, nil
	}

	var ready int64
	if err := r.readyQuery(ctx).Model(&models.SweepQueueEntry{}).
		Where("tenant_id = ?", m.TenantID).
		Count(&ready).Error; err != nil {
		return false, err
	}
	return ready < int64(max), nil
}

// readyQuery selects claimable entries. Entries of tenants with sweeping
// disabled are held back rather than failed; they become claimable again once
// the tenant is re-enabled.
func (r *SweepQueueRepository) readyQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("status = ?", string(entities.SweepStatusQueued)).
		Where("not_before IS NULL OR not_before <= ?", time.Now()).
		Where("tenant_id NOT IN (?)", r.db.Model(&models.MasterWallet{}).
			Select("tenant_id").
			Where("sweep_enabled = ?", false)).
		Order("priority DESC, enqueued_at ASC")
}

func (r *SweepQueueRepository) nextReady(ctx context.Context) (*models.SweepQueueEntry, error) {
	var m models.SweepQueueEntry
	if err := r.readyQuery(ctx).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *SweepQueueRepository) claim(ctx context.Context, id uuid.UUID, workerID string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("id = ? AND status = ?", id, string(entities.SweepStatusQueued)).
		Updates(map[string]interface{}{
			"status":     string(entities.SweepStatusProcessing),
			"claimed_by": workerID,
			"claimed_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Requeue returns a PROCESSING entry to QUEUED with a retry delay and bumps
// the attempt counter. Only the retry controller calls this.
func (r *SweepQueueRepository) Requeue(ctx context.Context, id uuid.UUID, lastError string, notBefore time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("id = ? AND status = ?", id, string(entities.SweepStatusProcessing)).
		Updates(map[string]interface{}{
			"status":     string(entities.SweepStatusQueued),
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"not_before": notBefore,
			"claimed_by": nil,
			"claimed_at": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Complete marks a PROCESSING entry terminally completed
func (r *SweepQueueRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return r.finish(ctx, id, entities.SweepStatusCompleted, "")
}

// Fail marks a PROCESSING entry terminally failed with a reason
func (r *SweepQueueRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, entities.SweepStatusFailed, reason)
}

func (r *SweepQueueRepository) finish(ctx context.Context, id uuid.UUID, status entities.SweepStatus, reason string) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if reason != "" {
		updates["last_error"] = reason
	}
	result := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("id = ? AND status = ?", id, string(entities.SweepStatusProcessing)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// GetByID gets a queue entry by ID
func (r *SweepQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.SweepQueueEntry, error) {
	var m models.SweepQueueEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toSweepQueueEntity(&m), nil
}

// HasLive reports whether a QUEUED or PROCESSING entry exists for the address
func (r *SweepQueueRepository) HasLive(ctx context.Context, addressID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("address_id = ? AND status IN ?", addressID,
			[]string{string(entities.SweepStatusQueued), string(entities.SweepStatusProcessing)}).
		Count(&count).Error
	return count > 0, err
}

// ResetForRetry returns a FAILED entry to QUEUED with attempts cleared
func (r *SweepQueueRepository) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("id = ? AND status = ?", id, string(entities.SweepStatusFailed)).
		Updates(map[string]interface{}{
			"status":     string(entities.SweepStatusQueued),
			"attempts":   0,
			"last_error": nil,
			"not_before": nil,
			"claimed_by": nil,
			"claimed_at": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotRequeueable
	}
	return nil
}

// List lists queue entries by status with pagination
func (r *SweepQueueRepository) List(ctx context.Context, status entities.SweepStatus, limit, offset int) ([]*entities.SweepQueueEntry, int, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if status != "" {
			q = q.Where("status = ?", string(status))
		}
		return q
	}

	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&models.SweepQueueEntry{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.SweepQueueEntry
	if err := scope(r.db.WithContext(ctx)).
		Order("priority DESC, enqueued_at ASC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*entities.SweepQueueEntry, 0, len(ms))
	for i := range ms {
		entries = append(entries, toSweepQueueEntity(&ms[i]))
	}
	return entries, int(total), nil
}

// CountByStatus counts queue entries in a given status
func (r *SweepQueueRepository) CountByStatus(ctx context.Context, status entities.SweepStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SweepQueueEntry{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, err
}

func toSweepQueueEntity(m *models.SweepQueueEntry) *entities.SweepQueueEntry {
	e := &entities.SweepQueueEntry{
		ID:             m.ID,
		AddressID:      m.AddressID,
		TenantID:       m.TenantID,
		ObservedAmount: m.ObservedAmount,
		Priority:       entities.SweepPriority(m.Priority),
		Status:         entities.SweepStatus(m.Status),
		Force:          m.Force,
		Attempts:       m.Attempts,
		EnqueuedAt:     m.EnqueuedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.LastError != nil {
		e.LastError = null.StringFrom(*m.LastError)
	}
	if m.NotBefore != nil {
		e.NotBefore = null.TimeFrom(*m.NotBefore)
	}
	if m.ClaimedBy != nil {
		e.ClaimedBy = null.StringFrom(*m.ClaimedBy)
	}
	if m.ClaimedAt != nil {
		e.ClaimedAt = null.TimeFrom(*m.ClaimedAt)
	}
	return e
}
