package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Config{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode disabled")
	}
	if _, err := os.Stat(filepath.Join(dir, ".sunwell", "logs")); !os.IsNotExist(err) {
		t.Fatal("expected no logs directory to be created in production mode")
	}
}

func TestInitializeWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Store("hello %s", "world")

	entries, err := os.ReadDir(filepath.Join(dir, ".sunwell", "logs"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one log file to be created")
	}
}

func TestCategoryDisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Config{
		DebugMode:  true,
		Categories: map[string]bool{string(CategoryStore): false},
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryStore) {
		t.Fatal("expected store category to be disabled")
	}
	if !IsCategoryEnabled(CategoryJournal) {
		t.Fatal("expected unlisted category to default to enabled")
	}
}
