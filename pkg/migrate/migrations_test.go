package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestCartItemsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_cart_items_table")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS cart_items",
		"PRIMARY KEY (user_id, product_id)",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (quantity >= 1)",
		"DROP TABLE IF EXISTS cart_items",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_orders_tables")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"PRIMARY KEY (order_id, product_id)",
		"CHECK (total = subtotal + shipping)",
		"status order_status NOT NULL DEFAULT 'pending'",
		"payment_status payment_status NOT NULL DEFAULT 'pending'",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestValidateDirRequiresGooseHeaders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_init.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "goose Down")
}

func TestValidateDirRequiresBalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 2;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_init.sql"), []byte(body), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "StatementBegin")
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	require.NoError(t, ValidateFS(Embedded(), embeddedDir))

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	entries, err := fs.ReadDir(Embedded(), embeddedDir)
	require.NoError(t, err)
	require.Len(t, entries, len(onDisk))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Cart Index!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_cart_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestCreateRefusesExistingVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := createAt(dir, "seed data", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260301120000_seed_data.sql"), path)

	_, err = createAt(dir, "seed-data", now)
	require.ErrorContains(t, err, "already exists")
}

func TestAutoMigrateModelsCreatesTables(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrateModels(conn))
	for _, table := range []string{"users", "categories", "products", "cart_items", "shipping_addresses", "payment_methods", "orders", "order_items", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}
}
