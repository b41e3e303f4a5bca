package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/orderflow-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matches %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrdersMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"user_id uuid NOT NULL,",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_stripe_payment_intent_id",
		"WHERE stripe_payment_intent_id IS NOT NULL",
		"CREATE TABLE IF NOT EXISTS order_items",
		"order_id uuid NOT NULL REFERENCES orders(id) ON DELETE CASCADE",
		"product_id uuid NOT NULL REFERENCES products(id)",
		"CHECK (quantity >= 1)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDeliveriesMigrationEnforcesOnePerOrder(t *testing.T) {
	content := readMigration(t, "*_create_deliveries_table.sql")
	checks := []string{
		"order_id uuid NOT NULL REFERENCES orders(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_order_id ON deliveries (order_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_products_table.sql")
	if !strings.Contains(content, "CHECK (stock >= 0)") {
		t.Fatalf("expected stock check constraint")
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersDoNotReferenceAUsersTable(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")
	if strings.Contains(content, "REFERENCES users") {
		t.Fatalf("user ids come from the caller identity and must not reference a local table")
	}
}
