package models

import (
	"time"

	"github.com/google/uuid"
)

type DepositAddress struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_user;uniqueIndex:idx_tenant_index"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_user"`
	DerivationIndex uint32    `gorm:"not null;uniqueIndex:idx_tenant_index"`
	Address         string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	IsActive        bool      `gorm:"default:true"`
	MinSweepAmount  *string   `gorm:"type:decimal(36,0)"` // Nullable, overrides tenant default
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (DepositAddress) TableName() string {
	return "deposit_addresses"
}
