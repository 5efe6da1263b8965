// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and response helpers.

# Middleware

  - WithLogging: structured request/completion logging with a request ID
  - WithMetrics: request duration histogram labelled by route pattern
  - RequireModerator: X-Moderator-Key validation for moderation endpoints
  - CORS: cross-origin headers and preflight handling

Handlers compose them at route registration:

	mux.HandleFunc("POST /petitions",
		middleware.WithLogging(middleware.WithMetrics("POST /petitions", h.CreatePetition)))

# Helpers

  - JSONResponse / ErrorResponse: JSON body writers
  - ParseJSONBody: request body decoding
  - GetClientIP: client IP extraction behind proxies
*/
package middleware
