// Package dbtest provides SQLite-backed databases carrying the settlement
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/r2blaze/r2blaze-backend/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  email TEXT NOT NULL,
  customer_name TEXT,
  customer_phone TEXT,
  shipping_address TEXT,
  items TEXT NOT NULL DEFAULT '[]',
  metadata TEXT,
  access_code TEXT,
  settled_via TEXT,
  paid_at DATETIME,
  failed_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT orders_reference_key UNIQUE (reference)
);
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  reference TEXT NOT NULL,
  processor TEXT NOT NULL DEFAULT 'paystack',
  status TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  source TEXT NOT NULL,
  paid_at DATETIME,
  raw TEXT,
  created_at DATETIME,
  CONSTRAINT payments_reference_key UNIQUE (reference)
);
CREATE TABLE IF NOT EXISTS settlement_conflicts (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  reference TEXT NOT NULL,
  expected_amount_minor INTEGER NOT NULL,
  expected_currency TEXT NOT NULL,
  observed_amount_minor INTEGER NOT NULL,
  observed_currency TEXT NOT NULL,
  observed_status TEXT NOT NULL,
  source TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  resolved_by TEXT,
  resolution_note TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT settlement_conflicts_observation_key UNIQUE (reference, observed_amount_minor, observed_currency)
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE TABLE IF NOT EXISTS outbox_dlq (
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
);`

// Open returns a private in-memory database with the schema applied. The pool
// is pinned to one connection so transactions serialise the way row locks do
// in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in the shared db.Client so services can run transactions.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t))
}
