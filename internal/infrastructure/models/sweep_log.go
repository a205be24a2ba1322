package models

import (
	"time"

	"github.com/google/uuid"
)

type SweepLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Address     string    `gorm:"type:varchar(255);not null;index"`
	Destination string    `gorm:"type:varchar(255);not null"`
	Amount      string    `gorm:"type:decimal(36,0);not null"`
	FeeCost     string    `gorm:"type:decimal(36,0);not null;default:0"`
	TxHash      string    `gorm:"type:varchar(66);not null;uniqueIndex"`
	Status      string    `gorm:"type:varchar(20);not null;index"`
	Reason      *string   `gorm:"type:text"`
	Attempts    int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"index"`
	ConfirmedAt *time.Time
}

func (SweepLog) TableName() string {
	return "sweep_logs"
}
