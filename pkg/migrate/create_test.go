package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Delivery Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_delivery_notes.sql") {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigrationRequiresName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatalf("expected sanitized-empty name to fail")
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20260101000000_one.sql": "-- +goose Up\n",
		"20260101000000_two.sql": "-- +goose Up\n-- +goose Down\n",
		"notes.txt":              "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	err := ValidateDir(dir)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	if !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("expected both the marker and duplicate problems, got %v", err)
	}
}

func TestRunRejectsUnsupportedCommands(t *testing.T) {
	err := Run(context.Background(), nil, "migrations", "reset")
	if err == nil || !strings.Contains(err.Error(), "unsupported goose command") {
		t.Fatalf("expected unsupported command error, got %v", err)
	}
	if err := Run(context.Background(), nil, "migrations", "up"); err == nil {
		t.Fatal("expected nil db to be rejected")
	}
	if err := MigrateToVersion(context.Background(), nil, "migrations", "latest"); err == nil {
		t.Fatal("expected non numeric version to be rejected")
	}
}
