// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestDriverName(t *testing.T) {
	if got := DriverName("postgres"); got != "postgres" {
		t.Errorf("Expected 'postgres', got '%s'", got)
	}
	if got := DriverName("sqlite"); got != "sqlite" {
		t.Errorf("Expected 'sqlite', got '%s'", got)
	}
}

func TestCreateSchemaSQLite(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if err := CreateSchema(conn, "sqlite"); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	// Idempotent: IF NOT EXISTS makes a second run a no-op
	if err := CreateSchema(conn, "sqlite"); err != nil {
		t.Fatalf("Second CreateSchema failed: %v", err)
	}

	for _, table := range []string{"site", "petition", "signature", "government_response", "debate_outcome", "email_delivery"} {
		var n int
		err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&n)
		if err != nil {
			t.Fatalf("Failed to query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected table '%s' to exist", table)
		}
	}
}
