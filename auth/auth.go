// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidModeratorKey = errors.New("invalid moderator key")
	ErrInvalidToken        = errors.New("invalid token format")
)

// moderatorContext is the fixed HMAC input for moderator key derivation.
const moderatorContext = "epetitions-moderator-v1"

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateModeratorKey derives the site-wide moderator key from the salt.
// This is deterministic and verifiable, so the key never needs to be stored:
// operators compute it from the salt and hand it to the moderation team.
func GenerateModeratorKey(salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(moderatorContext))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateModeratorKey checks the provided moderator key in constant time
func ValidateModeratorKey(key, salt string) error {
	expected := GenerateModeratorKey(salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidModeratorKey
	}
	return nil
}

// GenerateSignatureToken creates a random secure token for a signature.
// Tokens are mailed to signers for email validation and unsubscribing.
func GenerateSignatureToken() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate signature token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}
