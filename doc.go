// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the e-petitions API server.

Citizens create petitions and sign them; once a petition collects enough
validated signatures it crosses response and debate thresholds, and every
opted-in signer is notified by email exactly once per crossing. Moderators
review sponsored petitions and record government responses and debate
outcomes.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run .

Or with flags:

	go run . -p 3550 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): connection string (postgres URL or sqlite path)
  - MODERATOR_KEY_SALT (-moderator-salt): secret for the moderator key HMAC
  - IP_HASH_SALT (-ip-salt): secret for signer IP hashing

Optional settings:

  - PORT (-p): server port (default: 3550)
  - DATABASE_TYPE (-t): "postgres" or "sqlite" (default: sqlite)
  - SMTP_ADDR (-smtp): SMTP host:port; unset logs email instead of sending
  - SMTP_USER / SMTP_PASSWORD: SMTP PLAIN auth credentials
  - SITE_*: cold-start defaults for the site settings row (see package site)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (petitions, signatures, moderation, site)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, moderator auth, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Schema creation for both database backends
  - site: Cached site settings singleton
  - mailer: Outbound email rendering and delivery
  - jobs: Threshold stamping, email dispatch, closing, pruning
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
