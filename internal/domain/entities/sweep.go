package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// SweepPriority orders queue entries. Higher values are claimed first;
// within a tier claiming is FIFO by enqueue time.
type SweepPriority int

const (
	SweepPriorityNormal    SweepPriority = 1
	SweepPriorityHigh      SweepPriority = 2
	SweepPriorityEmergency SweepPriority = 3
)

// ParseSweepPriority maps the wire representation to a priority tier.
func ParseSweepPriority(s string) (SweepPriority, bool) {
	switch s {
	case "normal", "":
		return SweepPriorityNormal, true
	case "high":
		return SweepPriorityHigh, true
	case "emergency":
		return SweepPriorityEmergency, true
	}
	return 0, false
}

func (p SweepPriority) String() string {
	switch p {
	case SweepPriorityHigh:
		return "high"
	case SweepPriorityEmergency:
		return "emergency"
	default:
		return "normal"
	}
}

// SweepStatus is the queue entry state machine:
// queued -> processing -> {completed | failed}, with processing -> queued
// allowed only through the retry controller.
type SweepStatus string

const (
	SweepStatusQueued     SweepStatus = "QUEUED"
	SweepStatusProcessing SweepStatus = "PROCESSING"
	SweepStatusCompleted  SweepStatus = "COMPLETED"
	SweepStatusFailed     SweepStatus = "FAILED"
)

// Terminal failure reasons surfaced to operators.
const (
	FailureReasonInsufficientResources = "insufficient-resources"
	FailureReasonMaxRetriesExceeded    = "max-retries-exceeded"
	FailureReasonDustAmount            = "dust-amount"
	FailureReasonInvalidAddress        = "malformed-address"
	FailureReasonSignatureRejected     = "signature-rejected"
	FailureReasonSuperseded            = "superseded"
)

// SweepQueueEntry is a unit of consolidation work. At most one entry per
// deposit address may be QUEUED or PROCESSING at any time.
type SweepQueueEntry struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	AddressID      uuid.UUID     `json:"addressId"`
	TenantID       uuid.UUID     `json:"tenantId"`
	ObservedAmount string        `json:"observedAmount" gorm:"type:decimal(36,0)"`
	Priority       SweepPriority `json:"priority"`
	Status         SweepStatus   `json:"status"`
	Force          bool          `json:"force"`
	Attempts       int           `json:"attempts"`
	LastError      null.String   `json:"lastError,omitempty"`
	NotBefore      null.Time     `json:"notBefore,omitempty"`
	ClaimedBy      null.String   `json:"claimedBy,omitempty"`
	ClaimedAt      null.Time     `json:"claimedAt,omitempty"`
	EnqueuedAt     time.Time     `json:"enqueuedAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// SweepLogStatus tracks a broadcast transaction's resolution.
type SweepLogStatus string

const (
	SweepLogStatusPending   SweepLogStatus = "PENDING"
	SweepLogStatusConfirmed SweepLogStatus = "CONFIRMED"
	SweepLogStatusFailed    SweepLogStatus = "FAILED"
)

// SweepLog is the append-only record of every broadcast attempt. A PENDING
// row gates re-enqueue of its address until reconciliation resolves it.
type SweepLog struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	TenantID    uuid.UUID      `json:"tenantId"`
	Address     string         `json:"address"`
	Destination string         `json:"destination"`
	Amount      string         `json:"amount" gorm:"type:decimal(36,0)"`
	FeeCost     string         `json:"feeCost" gorm:"type:decimal(36,0)"`
	TxHash      string         `json:"txHash"`
	Status      SweepLogStatus `json:"status"`
	Reason      null.String    `json:"reason,omitempty"`
	Attempts    int            `json:"attempts"`
	CreatedAt   time.Time      `json:"createdAt"`
	ConfirmedAt null.Time      `json:"confirmedAt,omitempty"`
}

// BalanceObservation is what the external chain watcher delivers.
type BalanceObservation struct {
	Address       string `json:"address" binding:"required"`
	Balance       string `json:"balance" binding:"required"` // base units
	Confirmations uint64 `json:"confirmations"`
}

// ManualSweepInput triggers a sweep for one address, optionally bypassing
// the minimum-amount check.
type ManualSweepInput struct {
	Address string `json:"address" binding:"required"`
	Force   bool   `json:"force"`
}

// BatchSweepInput triggers sweeps for several addresses at one priority.
type BatchSweepInput struct {
	Addresses []string `json:"addresses" binding:"required"`
	Priority  string   `json:"priority"`
}

// EmergencySweepInput triggers an emergency-priority sweep.
type EmergencySweepInput struct {
	Address string `json:"address" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}
