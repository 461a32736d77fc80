package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/aevrHQ/ui/config"
)

func TestNewDB_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.DBType = "sqlite"
	cfg.DBFilePath = filepath.Join(t.TempDir(), "nested", "history.db")

	logger, _ := test.NewNullLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer func() { _ = Close(db) }()

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewDB_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.DBType = "none"

	db, err := NewDB(cfg, nil)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if db != nil {
		t.Fatal("expected nil db")
	}
}

func TestNewDB_Unsupported(t *testing.T) {
	cfg := config.Default()
	cfg.DBType = "mysql"

	if _, err := NewDB(cfg, logrus.New()); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil): %v", err)
	}
}
