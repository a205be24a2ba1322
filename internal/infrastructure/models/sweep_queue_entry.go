package models

import (
	"time"

	"github.com/google/uuid"
)

type SweepQueueEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	AddressID      uuid.UUID `gorm:"type:uuid;not null;index"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ObservedAmount string    `gorm:"type:decimal(36,0);not null"`
	Priority       int       `gorm:"not null;index"`
	Status         string    `gorm:"type:varchar(20);not null;index"`
	Force          bool      `gorm:"default:false"`
	Attempts       int       `gorm:"not null;default:0"`
	LastError      *string   `gorm:"type:text"`
	NotBefore      *time.Time
	ClaimedBy      *string `gorm:"type:varchar(64)"`
	ClaimedAt      *time.Time
	EnqueuedAt     time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

func (SweepQueueEntry) TableName() string {
	return "sweep_queue_entries"
}
