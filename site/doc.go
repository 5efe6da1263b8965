// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package site manages the site-wide settings singleton.

Thresholds, branding, sponsor limits, and the enabled/protected flags live in
a single database row (id = 1). Handlers and background jobs never query the
row directly: they go through a Manager, which caches the row in the process
for up to five minutes.

	sites := site.NewManager(db)
	s, err := sites.Get()          // cached
	s, err = sites.Reload()        // forced refresh
	s, err = sites.Update(req)     // persists and refreshes the cache

On a cold start (no row yet) the singleton is derived from SITE_* environment
variables and inserted; a concurrent cold start in another process is handled
with ON CONFLICT DO NOTHING.
*/
package site
