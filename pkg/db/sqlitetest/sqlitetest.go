// Package sqlitetest opens in-memory SQLite databases carrying the marketplace
// schema for repository and service tests.
package sqlitetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'user',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price TEXT NOT NULL,
  commission_percent TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  sold_to TEXT,
  sold_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  charged_amount TEXT,
  commission_percent TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE payment_proofs (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  image_url TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_verification',
  uploaded_at DATETIME,
  verified_at DATETIME,
  verifier_id TEXT,
  rejection_reason TEXT,
  rejected_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE fulfillment_records (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  payment_proof_id TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  buyer_name TEXT NOT NULL,
  buyer_contact TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  seller_name TEXT NOT NULL,
  seller_contact TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  listing_title TEXT NOT NULL,
  listing_price TEXT NOT NULL,
  commission_percent TEXT,
  commission_amount TEXT,
  buyer_price TEXT,
  order_amount TEXT,
  current_step INTEGER NOT NULL,
  overall_status TEXT NOT NULL,
  steps TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  last_actor_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  completed_at DATETIME,
  failed_at DATETIME
)`,
	`CREATE TABLE payout_ledger_entries (
  id TEXT PRIMARY KEY,
  fulfillment_record_id TEXT NOT NULL UNIQUE,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  gross_amount TEXT NOT NULL,
  commission_amount TEXT NOT NULL,
  commission_percent TEXT NOT NULL,
  net_seller_amount TEXT NOT NULL,
  processed_by TEXT NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  event_id TEXT,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_notifications_event_user ON notifications(event_id, user_id)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// Open returns a fresh in-memory database with every table created. Each call
// gets its own database so tests never observe each other's rows.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
