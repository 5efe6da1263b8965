// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema

CreateSchema creates all tables if they don't exist:

	err := db.CreateSchema(dbConn, cfg.DatabaseType)

Two DDL variants are kept in sync: postgres (production) and sqlite
(development and tests). DriverName maps the configured type to the
registered database/sql driver:

	dbConn, err := sql.Open(db.DriverName(cfg.DatabaseType), cfg.DatabaseURL)

# Tables

  - site: single-row settings singleton (id = 1)
  - petition: petitions with lifecycle state and threshold stamps
  - signature: signatures with validation/unsubscribe tokens
  - government_response, debate_outcome: one per petition
  - email_delivery: notification queue, one row per signature per kind

The UNIQUE (petition_id, signature_id, kind) constraint on email_delivery is
what makes batch enqueueing idempotent: re-running a notification batch
inserts nothing new.
*/
package db
