package models

import (
	"time"

	"github.com/google/uuid"
)

type MasterWallet struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	TenantID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EncryptedSeed       string    `gorm:"type:text;not null"`
	LastDerivationIndex uint32    `gorm:"not null;default:0"`
	CollectionAddress   string    `gorm:"type:varchar(255);not null"`
	MinSweepAmount      string    `gorm:"type:decimal(36,0);not null;default:0"`
	SweepEnabled        bool      `gorm:"default:true"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (MasterWallet) TableName() string {
	return "master_wallets"
}
