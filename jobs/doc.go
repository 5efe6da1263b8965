// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package jobs runs the background work: threshold crossing detection, the
email delivery dispatcher, petition closing, and pending-signature pruning.

# Threshold Notification Workflow

The signature-threshold workflow is three sequential steps per crossing:

 1. Select open petitions at or above the threshold whose crossing stamp
    is still NULL.
 2. Claim the crossing with UPDATE ... WHERE <stamp> IS NULL. Zero rows
    affected means another pass (or another process) already claimed it.
 3. Enqueue one email_delivery row per validated opt-in signature, under a
    UNIQUE (petition_id, signature_id, kind) constraint.

Steps 2 and 3 share a transaction, so a crash between them re-runs cleanly:
either the stamp and the batch both exist, or neither does. The result is
each signer notified exactly once per crossing.

# Dispatch

DispatchEmails drains unsent deliveries in insertion order, rate-limited,
re-checking the signer's opt-in at send time. Send failures are recorded on
the row (attempts, last_error) and retried on the next tick.

# Schedules

	@every 1m   StampThresholdCrossings
	@every 30s  DispatchEmails
	@hourly     CloseExpiredPetitions
	@every 24h  PrunePendingSignatures
*/
package jobs
