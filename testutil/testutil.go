// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/civicworks/epetitions/auth"
	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/db"
	"github.com/civicworks/epetitions/models"
)

// SetupTestDB creates a fresh in-memory sqlite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// A second connection would see an empty :memory: database
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn, "sqlite"); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3550,
		DatabaseURL:      ":memory:",
		DatabaseType:     "sqlite",
		ModeratorKeySalt: "test-moderator-salt",
		IPHashSalt:       "test-ip-salt",
	}
}

// CreateTestPetition creates a petition in the given state and returns its ID.
// Open and closed petitions get plausible open_at/closes_at windows.
func CreateTestPetition(t *testing.T, conn *sql.DB, state string) string {
	t.Helper()

	petitionID, _ := auth.GenerateID(16)
	now := time.Now()

	var openAt, closesAt, closedAt *time.Time
	switch state {
	case models.StateOpen:
		o := now.Add(-24 * time.Hour)
		c := now.Add(90 * 24 * time.Hour)
		openAt, closesAt = &o, &c
	case models.StateClosed:
		o := now.Add(-200 * 24 * time.Hour)
		c := now.Add(-24 * time.Hour)
		openAt, closesAt, closedAt = &o, &c, &c
	}

	_, err := conn.Exec(`
		INSERT INTO petition (id, action, background, additional_details, state, signature_count,
			open_at, closes_at, closed_at, created_at, updated_at)
		VALUES ($1, 'Test the petition system', 'Because testing matters', '', $2, 0, $3, $4, $5, $6, $6)
	`, petitionID, state, openAt, closesAt, closedAt, now)
	if err != nil {
		t.Fatalf("Failed to create test petition: %v", err)
	}

	return petitionID
}

// CreateTestSignature adds a signature and returns its ID plus both tokens.
// Validated signatures also bump the petition's signature_count, matching
// what the verify endpoint does.
func CreateTestSignature(t *testing.T, conn *sql.DB, petitionID, email, role, state string, notify bool) (id, validationToken, unsubscribeToken string) {
	t.Helper()

	id, _ = auth.GenerateID(16)
	validationToken, _ = auth.GenerateSignatureToken()
	unsubscribeToken, _ = auth.GenerateSignatureToken()
	now := time.Now()

	var validatedAt *time.Time
	if state == models.SignatureValidated {
		validatedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO signature (id, petition_id, name, email, postcode, location_code, state, role,
			notify_by_email, validation_token, unsubscribe_token, validated_at, created_at)
		VALUES ($1, $2, 'Test Signer', $3, 'SW1A 1AA', 'GB', $4, $5, $6, $7, $8, $9, $10)
	`, id, petitionID, email, state, role, notify, validationToken, unsubscribeToken, validatedAt, now)
	if err != nil {
		t.Fatalf("Failed to create test signature: %v", err)
	}

	if state == models.SignatureValidated {
		if _, err := conn.Exec(`
			UPDATE petition SET signature_count = signature_count + 1 WHERE id = $1
		`, petitionID); err != nil {
			t.Fatalf("Failed to bump signature count: %v", err)
		}
	}

	return id, validationToken, unsubscribeToken
}

// SeedTestSite inserts the site singleton with low thresholds so tests can
// cross them with a handful of signatures.
func SeedTestSite(t *testing.T, conn *sql.DB) {
	t.Helper()

	now := time.Now()
	_, err := conn.Exec(`
		INSERT INTO site (id, title, url, email_from, petition_duration_days,
			minimum_sponsors, maximum_sponsors, threshold_for_moderation,
			threshold_for_response, threshold_for_debate, enabled, protected,
			created_at, updated_at)
		VALUES (1, 'Test Petitions', 'https://test.example', 'no-reply@test.example',
			180, 2, 5, 2, 3, 5, $1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING
	`, true, false, now)
	if err != nil {
		t.Fatalf("Failed to seed test site: %v", err)
	}
}

// CountDeliveries returns the email_delivery rows for a petition and kind
func CountDeliveries(t *testing.T, conn *sql.DB, petitionID, kind string) int {
	t.Helper()

	var n int
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM email_delivery WHERE petition_id = $1 AND kind = $2
	`, petitionID, kind).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count deliveries: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
