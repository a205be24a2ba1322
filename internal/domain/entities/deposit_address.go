package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// DepositAddress is the 1:1 mapping between a user and a derived address.
// The (index, address) pair is immutable for its lifetime; deactivation
// excludes the address from eligibility but keeps history.
type DepositAddress struct {
	ID              uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	TenantID        uuid.UUID   `json:"tenantId"`
	UserID          uuid.UUID   `json:"userId"`
	DerivationIndex uint32      `json:"derivationIndex"`
	Address         string      `json:"address"`
	IsActive        bool        `json:"isActive"`
	MinSweepAmount  null.String `json:"minSweepAmount,omitempty" gorm:"type:decimal(36,0)"` // per-address override, tenant default when null
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// AllocateAddressInput requests a deposit address for a user
type AllocateAddressInput struct {
	TenantID string `json:"tenantId" binding:"required,uuid"`
	UserID   string `json:"userId" binding:"required,uuid"`
}

// MinSweepAmountOrDefault resolves the effective sweep minimum.
func (d *DepositAddress) MinSweepAmountOrDefault(tenantDefault string) string {
	if d.MinSweepAmount.Valid && d.MinSweepAmount.String != "" {
		return d.MinSweepAmount.String
	}
	return tenantDefault
}
