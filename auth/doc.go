// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and key derivation utilities.

# Moderator Keys

The moderator key uses HMAC-SHA256 to create a deterministic, verifiable
site-wide key:

	key := auth.GenerateModeratorKey(salt)
	err := auth.ValidateModeratorKey(key, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same salt always produces the same key. This allows validation without
storing the key in the database.

# Signature Tokens

Signature tokens are random 24-byte (192-bit) secrets:

	token, err := auth.GenerateSignatureToken()

Each signature gets two: a validation token (emailed for the confirm-your-
email step) and an unsubscribe token (embedded in notification emails).

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

For privacy-preserving fraud detection:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
