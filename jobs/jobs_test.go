// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
	"github.com/civicworks/epetitions/testutil"
)

func setupRunner(t *testing.T) (*Runner, *sql.DB, *mailer.Recorder) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	testutil.SeedTestSite(t, conn)
	rec := &mailer.Recorder{}
	r := NewRunner(conn, site.NewManager(conn), rec)
	return r, conn, rec
}

// seedCrossingPetition creates an open petition with enough validated
// opt-in signatures to cross the test site's response threshold (3).
func seedCrossingPetition(t *testing.T, conn *sql.DB) string {
	t.Helper()
	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		testutil.CreateTestSignature(t, conn, petitionID, email, models.RoleSigner, models.SignatureValidated, true)
	}
	return petitionID
}

func TestStampThresholdCrossings(t *testing.T) {
	r, conn, _ := setupRunner(t)
	petitionID := seedCrossingPetition(t, conn)

	require.NoError(t, r.StampThresholdCrossings())

	var stamped *time.Time
	require.NoError(t, conn.QueryRow(`
		SELECT response_threshold_reached_at FROM petition WHERE id = $1
	`, petitionID).Scan(&stamped))
	require.NotNil(t, stamped)

	assert.Equal(t, 3, testutil.CountDeliveries(t, conn, petitionID, models.DeliveryResponseThreshold))

	// Below the debate threshold (5): no debate deliveries
	assert.Equal(t, 0, testutil.CountDeliveries(t, conn, petitionID, models.DeliveryDebateThreshold))
}

func TestStampThresholdCrossingsExactlyOnce(t *testing.T) {
	r, conn, _ := setupRunner(t)
	petitionID := seedCrossingPetition(t, conn)

	require.NoError(t, r.StampThresholdCrossings())
	first := testutil.CountDeliveries(t, conn, petitionID, models.DeliveryResponseThreshold)

	var stamp1 *time.Time
	require.NoError(t, conn.QueryRow(`
		SELECT response_threshold_reached_at FROM petition WHERE id = $1
	`, petitionID).Scan(&stamp1))

	// Running the job again must not re-stamp or re-enqueue
	require.NoError(t, r.StampThresholdCrossings())
	require.NoError(t, r.StampThresholdCrossings())

	assert.Equal(t, first, testutil.CountDeliveries(t, conn, petitionID, models.DeliveryResponseThreshold))

	var stamp2 *time.Time
	require.NoError(t, conn.QueryRow(`
		SELECT response_threshold_reached_at FROM petition WHERE id = $1
	`, petitionID).Scan(&stamp2))
	assert.True(t, stamp1.Equal(*stamp2), "stamp must not move on later passes")
}

func TestStampSkipsOptedOutSignatures(t *testing.T) {
	r, conn, _ := setupRunner(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	testutil.CreateTestSignature(t, conn, petitionID, "in1@example.com", models.RoleSigner, models.SignatureValidated, true)
	testutil.CreateTestSignature(t, conn, petitionID, "in2@example.com", models.RoleSigner, models.SignatureValidated, true)
	testutil.CreateTestSignature(t, conn, petitionID, "out@example.com", models.RoleSigner, models.SignatureValidated, false)

	require.NoError(t, r.StampThresholdCrossings())

	// Threshold counted all 3, but only opted-in signers get deliveries
	assert.Equal(t, 2, testutil.CountDeliveries(t, conn, petitionID, models.DeliveryResponseThreshold))
}

func TestStampIgnoresNonOpenPetitions(t *testing.T) {
	r, conn, _ := setupRunner(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateClosed)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		testutil.CreateTestSignature(t, conn, petitionID, email, models.RoleSigner, models.SignatureValidated, true)
	}

	require.NoError(t, r.StampThresholdCrossings())

	var stamped *time.Time
	require.NoError(t, conn.QueryRow(`
		SELECT response_threshold_reached_at FROM petition WHERE id = $1
	`, petitionID).Scan(&stamped))
	assert.Nil(t, stamped)
}

func TestDispatchEmails(t *testing.T) {
	r, conn, rec := setupRunner(t)
	petitionID := seedCrossingPetition(t, conn)

	require.NoError(t, r.StampThresholdCrossings())
	require.NoError(t, r.DispatchEmails(context.Background()))

	sent := rec.Sent()
	require.Len(t, sent, 3)
	for _, e := range sent {
		assert.Contains(t, e.Subject, "signatures reached")
		assert.Contains(t, e.Body, "unsubscribe?token=")
	}

	var unsent int
	require.NoError(t, conn.QueryRow(`
		SELECT COUNT(*) FROM email_delivery WHERE petition_id = $1 AND sent_at IS NULL
	`, petitionID).Scan(&unsent))
	assert.Equal(t, 0, unsent)

	// A second dispatch finds nothing to send
	require.NoError(t, r.DispatchEmails(context.Background()))
	assert.Len(t, rec.Sent(), 3)
}

func TestDispatchSkipsLateUnsubscribes(t *testing.T) {
	r, conn, rec := setupRunner(t)
	petitionID := seedCrossingPetition(t, conn)

	require.NoError(t, r.StampThresholdCrossings())

	// Signer opts out after enqueue but before dispatch
	_, err := conn.Exec(`
		UPDATE signature SET notify_by_email = $1 WHERE email = 'b@example.com'
	`, false)
	require.NoError(t, err)

	require.NoError(t, r.DispatchEmails(context.Background()))

	assert.Len(t, rec.Sent(), 2)

	var note string
	require.NoError(t, conn.QueryRow(`
		SELECT d.last_error FROM email_delivery d
		JOIN signature s ON d.signature_id = s.id
		WHERE s.email = 'b@example.com' AND d.petition_id = $1
	`, petitionID).Scan(&note))
	assert.Equal(t, "skipped: unsubscribed", note)
}

func TestDispatchRecordsFailures(t *testing.T) {
	r, conn, rec := setupRunner(t)
	petitionID := seedCrossingPetition(t, conn)
	rec.FailWith = errors.New("smtp unavailable")

	require.NoError(t, r.StampThresholdCrossings())
	require.NoError(t, r.DispatchEmails(context.Background()))

	var attempts int
	var lastError string
	require.NoError(t, conn.QueryRow(`
		SELECT attempts, last_error FROM email_delivery
		WHERE petition_id = $1 LIMIT 1
	`, petitionID).Scan(&attempts, &lastError))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "smtp unavailable", lastError)

	// Rows stay queued for the next tick
	var unsent int
	require.NoError(t, conn.QueryRow(`
		SELECT COUNT(*) FROM email_delivery WHERE petition_id = $1 AND sent_at IS NULL
	`, petitionID).Scan(&unsent))
	assert.Equal(t, 3, unsent)

	// SMTP recovers: everything goes out
	rec.FailWith = nil
	require.NoError(t, r.DispatchEmails(context.Background()))
	assert.Len(t, rec.Sent(), 3)
}

func TestCloseExpiredPetitions(t *testing.T) {
	r, conn, _ := setupRunner(t)

	expiredID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	_, err := conn.Exec(`
		UPDATE petition SET closes_at = $1 WHERE id = $2
	`, time.Now().Add(-time.Hour), expiredID)
	require.NoError(t, err)

	activeID := testutil.CreateTestPetition(t, conn, models.StateOpen)

	require.NoError(t, r.CloseExpiredPetitions())

	var state string
	require.NoError(t, conn.QueryRow(`SELECT state FROM petition WHERE id = $1`, expiredID).Scan(&state))
	assert.Equal(t, models.StateClosed, state)

	require.NoError(t, conn.QueryRow(`SELECT state FROM petition WHERE id = $1`, activeID).Scan(&state))
	assert.Equal(t, models.StateOpen, state)
}

func TestPrunePendingSignatures(t *testing.T) {
	r, conn, _ := setupRunner(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	staleID, _, _ := testutil.CreateTestSignature(t, conn, petitionID, "stale@example.com", models.RoleSigner, models.SignaturePending, true)
	freshID, _, _ := testutil.CreateTestSignature(t, conn, petitionID, "fresh@example.com", models.RoleSigner, models.SignaturePending, true)
	creatorID, _, _ := testutil.CreateTestSignature(t, conn, petitionID, "creator@example.com", models.RoleCreator, models.SignaturePending, true)

	old := time.Now().Add(-pendingSignatureMaxAge - time.Hour)
	_, err := conn.Exec(`UPDATE signature SET created_at = $1 WHERE id IN ($2, $3)`, old, staleID, creatorID)
	require.NoError(t, err)

	require.NoError(t, r.PrunePendingSignatures())

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM signature WHERE id = $1`, staleID).Scan(&n))
	assert.Equal(t, 0, n, "stale pending signature should be pruned")

	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM signature WHERE id = $1`, freshID).Scan(&n))
	assert.Equal(t, 1, n, "fresh pending signature should survive")

	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM signature WHERE id = $1`, creatorID).Scan(&n))
	assert.Equal(t, 1, n, "creator signature should survive regardless of age")
}
