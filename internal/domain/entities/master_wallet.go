package entities

import (
	"time"

	"github.com/google/uuid"
)

// MasterWallet holds the encrypted master seed for a tenant and the counter
// used to hand out derivation indices. LastDerivationIndex only ever grows;
// it is the single source of truth for the next free index.
type MasterWallet struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	TenantID            uuid.UUID `json:"tenantId"`
	EncryptedSeed       string    `json:"-"`
	LastDerivationIndex uint32    `json:"lastDerivationIndex"`
	CollectionAddress   string    `json:"collectionAddress"`
	MinSweepAmount      string    `json:"minSweepAmount" gorm:"type:decimal(36,0)"` // base units
	SweepEnabled        bool      `json:"sweepEnabled"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RegisterTenantInput onboards a tenant: a fresh master seed is generated
// and stored encrypted, never returned.
type RegisterTenantInput struct {
	TenantID          string `json:"tenantId" binding:"required,uuid"`
	CollectionAddress string `json:"collectionAddress" binding:"required"`
	MinSweepAmount    string `json:"minSweepAmount" binding:"required"` // base units
}

// SetSweepEnabledInput toggles sweeping for a tenant
type SetSweepEnabledInput struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
