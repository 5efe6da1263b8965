// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// DriverName maps the configured database type to its registered driver.
func DriverName(databaseType string) string {
	if databaseType == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, databaseType string) error {
	ddl := schemaSQLite
	if databaseType == "postgres" {
		ddl = schemaPostgres
	}

	_, err := db.Exec(ddl)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schemaPostgres = `
-- Site settings singleton
CREATE TABLE IF NOT EXISTS site (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    email_from TEXT NOT NULL,
    petition_duration_days INTEGER NOT NULL,
    minimum_sponsors INTEGER NOT NULL,
    maximum_sponsors INTEGER NOT NULL,
    threshold_for_moderation INTEGER NOT NULL,
    threshold_for_response INTEGER NOT NULL,
    threshold_for_debate INTEGER NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    protected BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

-- Petitions
CREATE TABLE IF NOT EXISTS petition (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    background TEXT NOT NULL,
    additional_details TEXT,
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'validated', 'sponsored', 'open', 'rejected', 'hidden', 'closed')),
    signature_count INTEGER NOT NULL DEFAULT 0,
    open_at TIMESTAMP,
    closes_at TIMESTAMP,
    closed_at TIMESTAMP,
    rejection_code TEXT,
    rejection_details TEXT,
    response_threshold_reached_at TIMESTAMP,
    debate_threshold_reached_at TIMESTAMP,
    government_response_at TIMESTAMP,
    debate_outcome_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_petition_state ON petition(state);
CREATE INDEX IF NOT EXISTS idx_petition_signature_count ON petition(state, signature_count);
CREATE INDEX IF NOT EXISTS idx_petition_closes_at ON petition(closes_at);

-- Signatures
CREATE TABLE IF NOT EXISTS signature (
    id TEXT PRIMARY KEY,
    petition_id TEXT NOT NULL REFERENCES petition(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    postcode TEXT,
    location_code TEXT NOT NULL DEFAULT 'GB',
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'validated', 'invalidated')),
    role TEXT NOT NULL DEFAULT 'signer' CHECK (role IN ('creator', 'sponsor', 'signer')),
    notify_by_email BOOLEAN NOT NULL DEFAULT TRUE,
    validation_token TEXT NOT NULL UNIQUE,
    unsubscribe_token TEXT NOT NULL UNIQUE,
    validated_at TIMESTAMP,
    ip_hash TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    UNIQUE (petition_id, email)
);

CREATE INDEX IF NOT EXISTS idx_signature_petition_id ON signature(petition_id);
CREATE INDEX IF NOT EXISTS idx_signature_validation_token ON signature(validation_token);
CREATE INDEX IF NOT EXISTS idx_signature_unsubscribe_token ON signature(unsubscribe_token);
CREATE INDEX IF NOT EXISTS idx_signature_state ON signature(petition_id, state);

-- Government responses
CREATE TABLE IF NOT EXISTS government_response (
    petition_id TEXT PRIMARY KEY REFERENCES petition(id) ON DELETE CASCADE,
    summary TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

-- Debate outcomes
CREATE TABLE IF NOT EXISTS debate_outcome (
    petition_id TEXT PRIMARY KEY REFERENCES petition(id) ON DELETE CASCADE,
    debated_on TIMESTAMP NOT NULL,
    debated BOOLEAN NOT NULL DEFAULT TRUE,
    overview TEXT,
    transcript_url TEXT,
    video_url TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

-- Email deliveries (one row per signature per notification kind)
CREATE TABLE IF NOT EXISTS email_delivery (
    id TEXT PRIMARY KEY,
    petition_id TEXT NOT NULL REFERENCES petition(id) ON DELETE CASCADE,
    signature_id TEXT NOT NULL REFERENCES signature(id) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('response_threshold', 'debate_threshold', 'government_response', 'debate_outcome')),
    enqueued_at TIMESTAMP NOT NULL DEFAULT NOW(),
    sent_at TIMESTAMP,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    UNIQUE (petition_id, signature_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_email_delivery_unsent ON email_delivery(sent_at) WHERE sent_at IS NULL;
`

// schemaSQLite mirrors schemaPostgres with sqlite-compatible defaults.
// Timestamps are always written explicitly by the application, so the
// CURRENT_TIMESTAMP defaults only matter for ad-hoc inserts.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS site (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    email_from TEXT NOT NULL,
    petition_duration_days INTEGER NOT NULL,
    minimum_sponsors INTEGER NOT NULL,
    maximum_sponsors INTEGER NOT NULL,
    threshold_for_moderation INTEGER NOT NULL,
    threshold_for_response INTEGER NOT NULL,
    threshold_for_debate INTEGER NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    protected BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS petition (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    background TEXT NOT NULL,
    additional_details TEXT,
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'validated', 'sponsored', 'open', 'rejected', 'hidden', 'closed')),
    signature_count INTEGER NOT NULL DEFAULT 0,
    open_at TIMESTAMP,
    closes_at TIMESTAMP,
    closed_at TIMESTAMP,
    rejection_code TEXT,
    rejection_details TEXT,
    response_threshold_reached_at TIMESTAMP,
    debate_threshold_reached_at TIMESTAMP,
    government_response_at TIMESTAMP,
    debate_outcome_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_petition_state ON petition(state);
CREATE INDEX IF NOT EXISTS idx_petition_signature_count ON petition(state, signature_count);
CREATE INDEX IF NOT EXISTS idx_petition_closes_at ON petition(closes_at);

CREATE TABLE IF NOT EXISTS signature (
    id TEXT PRIMARY KEY,
    petition_id TEXT NOT NULL REFERENCES petition(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    postcode TEXT,
    location_code TEXT NOT NULL DEFAULT 'GB',
    state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'validated', 'invalidated')),
    role TEXT NOT NULL DEFAULT 'signer' CHECK (role IN ('creator', 'sponsor', 'signer')),
    notify_by_email BOOLEAN NOT NULL DEFAULT TRUE,
    validation_token TEXT NOT NULL UNIQUE,
    unsubscribe_token TEXT NOT NULL UNIQUE,
    validated_at TIMESTAMP,
    ip_hash TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (petition_id, email)
);

CREATE INDEX IF NOT EXISTS idx_signature_petition_id ON signature(petition_id);
CREATE INDEX IF NOT EXISTS idx_signature_validation_token ON signature(validation_token);
CREATE INDEX IF NOT EXISTS idx_signature_unsubscribe_token ON signature(unsubscribe_token);
CREATE INDEX IF NOT EXISTS idx_signature_state ON signature(petition_id, state);

CREATE TABLE IF NOT EXISTS government_response (
    petition_id TEXT PRIMARY KEY REFERENCES petition(id) ON DELETE CASCADE,
    summary TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS debate_outcome (
    petition_id TEXT PRIMARY KEY REFERENCES petition(id) ON DELETE CASCADE,
    debated_on TIMESTAMP NOT NULL,
    debated BOOLEAN NOT NULL DEFAULT TRUE,
    overview TEXT,
    transcript_url TEXT,
    video_url TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS email_delivery (
    id TEXT PRIMARY KEY,
    petition_id TEXT NOT NULL REFERENCES petition(id) ON DELETE CASCADE,
    signature_id TEXT NOT NULL REFERENCES signature(id) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('response_threshold', 'debate_threshold', 'government_response', 'debate_outcome')),
    enqueued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sent_at TIMESTAMP,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    UNIQUE (petition_id, signature_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_email_delivery_unsent ON email_delivery(sent_at) WHERE sent_at IS NULL;
`
