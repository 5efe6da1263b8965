// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain types and request/response payloads for
the petitions API.

# Petition States

Petitions move through a fixed lifecycle:

	pending → validated → sponsored → open | rejected | hidden
	open → closed (deadline)

  - pending: created, creator's signature not yet email-validated
  - validated: creator validated, petition collects sponsor signatures
  - sponsored: enough sponsors, waiting in the moderation queue
  - open: approved by a moderator, collecting public signatures
  - rejected: rejected with a published code and details
  - hidden: rejected with a libellous/offensive code, not publicly visible
  - closed: signature collection ended at the deadline

# Signature States

Signatures are pending until the signer clicks the emailed validation link.
Only validated signatures count toward thresholds. Invalidated signatures
are kept for audit but never counted.

# Privacy

Email addresses, postcodes, opt-in flags, and tokens are never serialized
into JSON responses (json:"-").
*/
package models
