// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the Prometheus collectors shared across the
// server. Collectors are registered at init via promauto and served at
// GET /metrics.
package metrics
