// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router wires URL patterns to handlers.

Uses Go 1.22+ http.ServeMux method patterns and path values. Public routes
get logging and metrics; moderation routes and PUT /site additionally
require the X-Moderator-Key header.
*/
package router
