// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateModeratorKey(t *testing.T) {
	tests := []struct {
		name string
		salt string
	}{
		{"standard", "secret-salt"},
		{"empty salt", ""},
		{"long salt", strings.Repeat("x", 256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := GenerateModeratorKey(tt.salt)

			// Should not be empty
			if key == "" {
				t.Error("GenerateModeratorKey() returned empty string")
			}

			// Should be deterministic
			key2 := GenerateModeratorKey(tt.salt)
			if key != key2 {
				t.Error("GenerateModeratorKey() is not deterministic")
			}

			// Different salts should produce different keys
			differentKey := GenerateModeratorKey(tt.salt + "x")
			if key == differentKey {
				t.Error("GenerateModeratorKey() produced same key for different salts")
			}

			// Should be URL-safe (no padding)
			if strings.Contains(key, "=") {
				t.Error("GenerateModeratorKey() contains padding characters")
			}
		})
	}
}

func TestValidateModeratorKey(t *testing.T) {
	salt := "test-salt"
	validKey := GenerateModeratorKey(salt)

	tests := []struct {
		name    string
		key     string
		salt    string
		wantErr bool
	}{
		{"valid key", validKey, salt, false},
		{"wrong key", "wrong-key", salt, true},
		{"wrong salt", validKey, "different-salt", true},
		{"empty key", "", salt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModeratorKey(tt.key, tt.salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModeratorKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidModeratorKey {
				t.Errorf("ValidateModeratorKey() error = %v, want %v", err, ErrInvalidModeratorKey)
			}
		})
	}
}

func TestGenerateSignatureToken(t *testing.T) {
	// Test basic generation
	token, err := GenerateSignatureToken()
	if err != nil {
		t.Fatalf("GenerateSignatureToken() error = %v", err)
	}

	if token == "" {
		t.Error("GenerateSignatureToken() returned empty string")
	}

	// Should be URL-safe (no padding)
	if strings.Contains(token, "=") {
		t.Error("GenerateSignatureToken() contains padding characters")
	}

	// Should be reasonably long (24 bytes encoded)
	if len(token) < 30 {
		t.Errorf("GenerateSignatureToken() too short: %d chars", len(token))
	}

	// Test randomness - should not produce duplicates
	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateSignatureToken()
		if err != nil {
			t.Fatalf("GenerateSignatureToken() error on iteration %d: %v", i, err)
		}
		if tokens[token] {
			t.Errorf("GenerateSignatureToken() produced duplicate token: %s", token)
		}
		tokens[token] = true
	}
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"IPv4", "192.168.1.1", "ip-salt"},
		{"IPv6", "2001:0db8:85a3::8a2e:0370:7334", "ip-salt"},
		{"localhost", "127.0.0.1", "ip-salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)

			// Should not be empty
			if hash == "" {
				t.Error("HashIP() returned empty string")
			}

			// Should be 16 hex characters (8 bytes * 2)
			if len(hash) != 16 {
				t.Errorf("HashIP() length = %d, want 16", len(hash))
			}

			// Should be valid hex
			for _, c := range hash {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("HashIP() contains invalid hex char: %c", c)
				}
			}

			// Should be deterministic
			hash2 := HashIP(tt.ip, tt.salt)
			if hash != hash2 {
				t.Error("HashIP() is not deterministic")
			}
		})
	}

	// Different IPs should produce different hashes
	hash1 := HashIP("192.168.1.1", "salt")
	hash2 := HashIP("192.168.1.2", "salt")
	if hash1 == hash2 {
		t.Error("HashIP() produced same hash for different IPs")
	}

	// Different salts should produce different hashes
	hash3 := HashIP("192.168.1.1", "salt1")
	hash4 := HashIP("192.168.1.1", "salt2")
	if hash3 == hash4 {
		t.Error("HashIP() produced same hash for different salts")
	}
}

// Benchmark tests
func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateID(16)
	}
}

func BenchmarkGenerateModeratorKey(b *testing.B) {
	salt := "test-salt"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GenerateModeratorKey(salt)
	}
}

func BenchmarkGenerateSignatureToken(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSignatureToken()
	}
}
