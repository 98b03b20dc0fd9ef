package config

import (
	"errors"
	"testing"
)

func TestRequireDatabaseURLPrefersDatabaseURL(t *testing.T) {
	c := &Config{DatabaseURL: "postgres://x", SqliteDatabasePath: "/tmp/omni.db"}
	dsn, err := c.RequireDatabaseURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "postgres://x" {
		t.Fatalf("expected DatabaseURL to win, got %q", dsn)
	}
}

func TestRequireDatabaseURLReportsUnimplementedSqliteFallback(t *testing.T) {
	c := &Config{SqliteDatabasePath: "/tmp/omni.db"}
	_, err := c.RequireDatabaseURL()
	if !errors.Is(err, ErrSqliteFallbackUnimplemented) {
		t.Fatalf("expected ErrSqliteFallbackUnimplemented, got %v", err)
	}
}

func TestRequireDatabaseURLRequiresOneOrTheOther(t *testing.T) {
	c := &Config{}
	_, err := c.RequireDatabaseURL()
	if err == nil {
		t.Fatal("expected an error when neither DatabaseURL nor SqliteDatabasePath is set")
	}
	if errors.Is(err, ErrSqliteFallbackUnimplemented) {
		t.Fatal("expected the plain required error, not the sqlite-fallback one")
	}
}
