package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/multierr"

	"github.com/r2blaze/r2blaze-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrdersMigrationEnforcesReferenceUniqueness(t *testing.T) {
	content := readMigration(t, "create_orders")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT orders_reference_key UNIQUE (reference)",
		"CHECK (status IN ('pending', 'paid', 'failed'))",
		"WHERE status = 'pending'",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationDedupesByReference(t *testing.T) {
	content := readMigration(t, "create_payments")
	for _, sub := range []string{
		"CONSTRAINT payments_reference_key UNIQUE (reference)",
		"FOREIGN KEY (order_id) REFERENCES orders(id)",
		"DROP TABLE IF EXISTS payments",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestConflictMigrationKeysObservation(t *testing.T) {
	content := readMigration(t, "create_settlement_conflicts")
	if !strings.Contains(content, "UNIQUE (reference, observed_amount_minor, observed_currency)") {
		t.Errorf("expected observation uniqueness")
	}
}

func TestValidateAcceptsShippedMigrations(t *testing.T) {
	fsys, err := migrate.Source("migrations")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if err := migrate.Validate(fsys); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	fsys, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	embedded, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_orders.sql":   {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\n")},
		"20260101000000_payments.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		"refunds.sql":                 {Data: []byte("-- +goose Up\n")},
	}
	err := migrate.Validate(fsys)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", n, err)
	}
}

func TestCreateSlugsNameAndOrdersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	first, err := migrate.Create(dir, "Add Refund Columns!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(first) != "20260901080000_add_refund_columns.sql" {
		t.Fatalf("unexpected path %s", first)
	}

	second, err := migrate.Create(dir, "index paid_at", now)
	if err != nil {
		t.Fatalf("create second migration: %v", err)
	}
	if filepath.Base(second) != "20260901080001_index_paid_at.sql" {
		t.Fatalf("expected bumped version, got %s", second)
	}

	if _, err := migrate.Create(dir, "add refund columns", now.Add(time.Hour)); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("validate generated migrations: %v", err)
	}
}
