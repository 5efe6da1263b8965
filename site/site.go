// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package site

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/civicworks/epetitions/models"
)

// CacheTTL is how long a fetched Site row is served from memory before the
// next Get re-reads the database.
const CacheTTL = 5 * time.Minute

// Site is the site-wide settings singleton. Exactly one row exists (id = 1).
type Site struct {
	Title                  string    `json:"title"`
	URL                    string    `json:"url"`
	EmailFrom              string    `json:"email_from"`
	PetitionDurationDays   int       `json:"petition_duration_days"`
	MinimumSponsors        int       `json:"minimum_sponsors"`
	MaximumSponsors        int       `json:"maximum_sponsors"`
	ThresholdForModeration int       `json:"threshold_for_moderation"`
	ThresholdForResponse   int       `json:"threshold_for_response"`
	ThresholdForDebate     int       `json:"threshold_for_debate"`
	Enabled                bool      `json:"enabled"`
	Protected              bool      `json:"protected"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Manager serves the cached Site singleton. All reads go through Get; the
// cached copy is refreshed once it is older than CacheTTL, and Update and
// Reload invalidate it immediately.
type Manager struct {
	db        *sql.DB
	mu        sync.Mutex
	cached    *Site
	fetchedAt time.Time
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Get returns the Site, served from cache when fresh.
func (m *Manager) Get() (Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && time.Since(m.fetchedAt) < CacheTTL {
		return *m.cached, nil
	}

	s, err := m.fetchOrCreate()
	if err != nil {
		return Site{}, err
	}

	m.cached = &s
	m.fetchedAt = time.Now()
	return s, nil
}

// Reload bypasses the cache and re-reads the row.
func (m *Manager) Reload() (Site, error) {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
	return m.Get()
}

// Update applies the non-nil fields of req, persists the row, and refreshes
// the cache.
func (m *Manager) Update(req models.UpdateSiteRequest) (Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.fetchOrCreate()
	if err != nil {
		return Site{}, err
	}

	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.URL != nil {
		s.URL = *req.URL
	}
	if req.EmailFrom != nil {
		s.EmailFrom = *req.EmailFrom
	}
	if req.PetitionDurationDays != nil {
		s.PetitionDurationDays = *req.PetitionDurationDays
	}
	if req.MinimumSponsors != nil {
		s.MinimumSponsors = *req.MinimumSponsors
	}
	if req.MaximumSponsors != nil {
		s.MaximumSponsors = *req.MaximumSponsors
	}
	if req.ThresholdForModeration != nil {
		s.ThresholdForModeration = *req.ThresholdForModeration
	}
	if req.ThresholdForResponse != nil {
		s.ThresholdForResponse = *req.ThresholdForResponse
	}
	if req.ThresholdForDebate != nil {
		s.ThresholdForDebate = *req.ThresholdForDebate
	}
	if req.Enabled != nil {
		s.Enabled = *req.Enabled
	}
	if req.Protected != nil {
		s.Protected = *req.Protected
	}

	s.UpdatedAt = time.Now()

	_, err = m.db.Exec(`
		UPDATE site
		SET title = $1, url = $2, email_from = $3, petition_duration_days = $4,
		    minimum_sponsors = $5, maximum_sponsors = $6,
		    threshold_for_moderation = $7, threshold_for_response = $8,
		    threshold_for_debate = $9, enabled = $10, protected = $11,
		    updated_at = $12
		WHERE id = 1
	`, s.Title, s.URL, s.EmailFrom, s.PetitionDurationDays,
		s.MinimumSponsors, s.MaximumSponsors,
		s.ThresholdForModeration, s.ThresholdForResponse,
		s.ThresholdForDebate, s.Enabled, s.Protected, s.UpdatedAt)
	if err != nil {
		return Site{}, fmt.Errorf("failed to update site: %w", err)
	}

	m.cached = &s
	m.fetchedAt = time.Now()
	return s, nil
}

// fetchOrCreate reads the singleton row, inserting the env-derived defaults
// on a cold start. Callers must hold m.mu.
func (m *Manager) fetchOrCreate() (Site, error) {
	s, err := m.fetch()
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return Site{}, err
	}

	s = DefaultsFromEnv()
	s.UpdatedAt = time.Now()

	// ON CONFLICT covers the race where two processes cold-start together.
	_, err = m.db.Exec(`
		INSERT INTO site (id, title, url, email_from, petition_duration_days,
			minimum_sponsors, maximum_sponsors, threshold_for_moderation,
			threshold_for_response, threshold_for_debate, enabled, protected,
			created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`, s.Title, s.URL, s.EmailFrom, s.PetitionDurationDays,
		s.MinimumSponsors, s.MaximumSponsors, s.ThresholdForModeration,
		s.ThresholdForResponse, s.ThresholdForDebate, s.Enabled, s.Protected,
		s.UpdatedAt, s.UpdatedAt)
	if err != nil {
		return Site{}, fmt.Errorf("failed to create site row: %w", err)
	}

	return m.fetch()
}

func (m *Manager) fetch() (Site, error) {
	var s Site
	err := m.db.QueryRow(`
		SELECT title, url, email_from, petition_duration_days,
		       minimum_sponsors, maximum_sponsors, threshold_for_moderation,
		       threshold_for_response, threshold_for_debate, enabled, protected,
		       updated_at
		FROM site
		WHERE id = 1
	`).Scan(
		&s.Title, &s.URL, &s.EmailFrom, &s.PetitionDurationDays,
		&s.MinimumSponsors, &s.MaximumSponsors, &s.ThresholdForModeration,
		&s.ThresholdForResponse, &s.ThresholdForDebate, &s.Enabled, &s.Protected,
		&s.UpdatedAt,
	)
	return s, err
}

// DefaultsFromEnv derives the cold-start Site from SITE_* environment
// variables, with built-in fallbacks for anything unset.
func DefaultsFromEnv() Site {
	return Site{
		Title:                  envStr("SITE_TITLE", "Petition the Government"),
		URL:                    envStr("SITE_URL", "https://petitions.example.gov"),
		EmailFrom:              envStr("SITE_EMAIL_FROM", "no-reply@petitions.example.gov"),
		PetitionDurationDays:   envInt("SITE_PETITION_DURATION_DAYS", 180),
		MinimumSponsors:        envInt("SITE_MINIMUM_SPONSORS", 5),
		MaximumSponsors:        envInt("SITE_MAXIMUM_SPONSORS", 20),
		ThresholdForModeration: envInt("SITE_THRESHOLD_FOR_MODERATION", 5),
		ThresholdForResponse:   envInt("SITE_THRESHOLD_FOR_RESPONSE", 10000),
		ThresholdForDebate:     envInt("SITE_THRESHOLD_FOR_DEBATE", 100000),
		Enabled:                envBool("SITE_ENABLED", true),
		Protected:              envBool("SITE_PROTECTED", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
