package migrations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_wallets.up.sql",
		"000001_create_wallets.down.sql",
		"000012_add_index.up.sql",
		"README.md",
		"0003_legacy.up.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "000099_dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if got := findLatestMigrationVersion(dir); got != 12 {
		t.Errorf("findLatestMigrationVersion = %d, want 12", got)
	}
}

func TestFindLatestMigrationVersionMissingDir(t *testing.T) {
	if got := findLatestMigrationVersion(filepath.Join(t.TempDir(), "nope")); got != 0 {
		t.Errorf("missing dir should yield 0, got %d", got)
	}
}

func TestRepositoryMigrationsAreNumbered(t *testing.T) {
	if got := findLatestMigrationVersion(filepath.Join("..", "..", DefaultDir)); got < 3 {
		t.Errorf("expected at least 3 migrations in repo, latest = %d", got)
	}
}

func TestRunMigrationsRequiresURL(t *testing.T) {
	if err := RunMigrations("", DefaultDir); err == nil {
		t.Fatal("expected error for empty database URL")
	}
}
