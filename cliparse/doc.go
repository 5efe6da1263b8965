// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3550)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: "sqlite" or "postgres" (default: sqlite)
  - ModeratorKeySalt: Secret for moderator key HMAC (required)
  - IPHashSalt: Secret for signature IP hashing (required)
  - SMTPAddr: SMTP host:port; when empty, emails are logged instead of sent

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-smtp            SMTP address
	-moderator-salt  Moderator key salt
	-ip-salt         IP hash salt

# Environment Variables

Flags fall back to environment variables:

	PORT               → -p
	DATABASE_URL       → -d
	DATABASE_TYPE      → -t
	SMTP_ADDR          → -smtp
	MODERATOR_KEY_SALT → -moderator-salt
	IP_HASH_SALT       → -ip-salt

SMTP_USER and SMTP_PASSWORD are env-only. CLI flags take precedence over
environment variables.

Site-level settings (title, thresholds, petition duration) are not part of
this config: they live in the site singleton and are seeded from SITE_*
variables on first boot. See the site package.
*/
package cliparse
