// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers implements the HTTP API.

Handlers are grouped by concern, each with injected dependencies:

  - PetitionHandler: create, list, fetch, signature counts
  - SignatureHandler: sign, email validation, unsubscribe
  - ModerationHandler: queue, approve, reject, government responses,
    debate outcomes (moderator key required)
  - SiteHandler: site settings singleton

Handlers speak JSON both ways and never expose signer email addresses or
postcodes. Petition visibility rules live here: pending, validated,
sponsored, and hidden petitions 404 on the public routes.
*/
package handlers
