package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createMasterWalletTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE master_wallets (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		encrypted_seed TEXT NOT NULL,
		last_derivation_index INTEGER NOT NULL DEFAULT 0,
		collection_address TEXT NOT NULL,
		min_sweep_amount TEXT NOT NULL DEFAULT '0',
		sweep_enabled BOOLEAN DEFAULT TRUE,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createDepositAddressTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE deposit_addresses (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		derivation_index INTEGER NOT NULL,
		address TEXT NOT NULL UNIQUE,
		is_active BOOLEAN DEFAULT TRUE,
		min_sweep_amount TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(tenant_id, user_id),
		UNIQUE(tenant_id, derivation_index)
	);`)
}

func createSweepQueueTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE sweep_queue_entries (
		id TEXT PRIMARY KEY,
		address_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		observed_amount TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL,
		force BOOLEAN DEFAULT FALSE,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		not_before DATETIME,
		claimed_by TEXT,
		claimed_at DATETIME,
		enqueued_at DATETIME,
		updated_at DATETIME
	);`)
}

func createSweepLogTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE sweep_logs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		address TEXT NOT NULL,
		destination TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee_cost TEXT NOT NULL DEFAULT '0',
		tx_hash TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		reason TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		confirmed_at DATETIME
	);`)
}
