// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueueDeliveries inserts one email_delivery row per validated, opt-in
// signature of the petition. The UNIQUE (petition_id, signature_id, kind)
// constraint plus ON CONFLICT DO NOTHING makes this idempotent: a signature
// is enqueued at most once per kind no matter how often the batch runs.
// Returns the number of rows actually inserted.
func EnqueueDeliveries(tx *sql.Tx, petitionID, kind string) (int, error) {
	rows, err := tx.Query(`
		SELECT id FROM signature
		WHERE petition_id = $1 AND state = 'validated' AND notify_by_email
	`, petitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	signatureIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan signature: %w", err)
		}
		signatureIDs = append(signatureIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate signatures: %w", err)
	}

	now := time.Now()
	enqueued := 0
	for _, sigID := range signatureIDs {
		res, err := tx.Exec(`
			INSERT INTO email_delivery (id, petition_id, signature_id, kind, enqueued_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (petition_id, signature_id, kind) DO NOTHING
		`, uuid.NewString(), petitionID, sigID, kind, now)
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue delivery: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		enqueued += int(n)
	}

	return enqueued, nil
}
