// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provides shared test fixtures: an in-memory sqlite
// database with the full schema, petition and signature builders, and
// httptest request/response helpers.
package testutil
