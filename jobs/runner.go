// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/metrics"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

const (
	// dispatchBatchSize caps how many deliveries one dispatcher tick drains.
	dispatchBatchSize = 500

	// emailsPerSecond limits outbound SMTP traffic.
	emailsPerSecond = 20

	// pendingSignatureMaxAge is how long an unvalidated signature is kept
	// before the pruner removes it.
	pendingSignatureMaxAge = 14 * 24 * time.Hour
)

// Runner owns the background jobs: threshold stamping, email dispatch,
// petition closing, and pending-signature pruning. All jobs use
// single-statement claims, so running a second process is safe.
type Runner struct {
	db      *sql.DB
	sites   *site.Manager
	mail    mailer.Mailer
	cron    *cron.Cron
	limiter *rate.Limiter
}

func NewRunner(db *sql.DB, sites *site.Manager, mail mailer.Mailer) *Runner {
	return &Runner{
		db:      db,
		sites:   sites,
		mail:    mail,
		cron:    cron.New(),
		limiter: rate.NewLimiter(rate.Limit(emailsPerSecond), emailsPerSecond),
	}
}

// Start registers the schedules and starts the cron loop. Non-blocking.
func (r *Runner) Start() error {
	schedules := []struct {
		spec string
		name string
		run  func() error
	}{
		{"@every 1m", "stamp_threshold_crossings", r.StampThresholdCrossings},
		{"@every 30s", "dispatch_emails", func() error { return r.DispatchEmails(context.Background()) }},
		{"@hourly", "close_expired_petitions", r.CloseExpiredPetitions},
		{"@every 24h", "prune_pending_signatures", r.PrunePendingSignatures},
	}

	for _, s := range schedules {
		s := s
		_, err := r.cron.AddFunc(s.spec, func() {
			if err := s.run(); err != nil {
				slog.Error("background job failed", "job", s.name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", s.name, err)
		}
	}

	r.cron.Start()
	slog.Info("background jobs started")
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("background jobs stopped")
}

// StampThresholdCrossings finds open petitions whose validated signature
// count has reached a site threshold and whose crossing has not yet been
// recorded, stamps the crossing timestamp exactly once, and enqueues one
// notification delivery per validated opt-in signature.
func (r *Runner) StampThresholdCrossings() error {
	s, err := r.sites.Get()
	if err != nil {
		return fmt.Errorf("failed to load site: %w", err)
	}

	if err := r.stampThreshold(s.ThresholdForResponse, "response_threshold_reached_at", models.DeliveryResponseThreshold); err != nil {
		return err
	}
	return r.stampThreshold(s.ThresholdForDebate, "debate_threshold_reached_at", models.DeliveryDebateThreshold)
}

// stampThreshold processes one threshold. column is one of the two fixed
// stamp column names, never user input.
func (r *Runner) stampThreshold(threshold int, column, kind string) error {
	query := fmt.Sprintf(`
		SELECT id FROM petition
		WHERE state = 'open' AND signature_count >= $1 AND %s IS NULL
	`, column)

	rows, err := r.db.Query(query, threshold)
	if err != nil {
		return fmt.Errorf("failed to query crossings: %w", err)
	}
	defer rows.Close()

	petitionIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan petition: %w", err)
		}
		petitionIDs = append(petitionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, petitionID := range petitionIDs {
		if err := r.claimCrossing(petitionID, column, kind); err != nil {
			slog.Error("failed to process threshold crossing",
				"petition_id", petitionID, "kind", kind, "error", err)
		}
	}

	return nil
}

// claimCrossing stamps the crossing timestamp and enqueues the notification
// batch in one transaction. The WHERE <column> IS NULL guard means only one
// claimer wins; everyone else updates zero rows and walks away.
func (r *Runner) claimCrossing(petitionID, column, kind string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.Exec(fmt.Sprintf(`
		UPDATE petition
		SET %s = $1, updated_at = $1
		WHERE id = $2 AND %s IS NULL
	`, column, column), now, petitionID)
	if err != nil {
		return fmt.Errorf("failed to stamp crossing: %w", err)
	}

	claimed, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if claimed == 0 {
		// Another pass already handled this crossing
		return nil
	}

	enqueued, err := EnqueueDeliveries(tx, petitionID, kind)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crossing: %w", err)
	}

	metrics.ThresholdCrossings.WithLabelValues(kind).Inc()
	metrics.DeliveriesEnqueued.WithLabelValues(kind).Add(float64(enqueued))
	slog.Info("threshold crossing recorded",
		"petition_id", petitionID, "kind", kind, "deliveries", enqueued)

	return nil
}

// pendingDelivery is one unsent email_delivery row joined with its
// signature and petition.
type pendingDelivery struct {
	ID               string
	Kind             string
	PetitionID       string
	Action           string
	SignerName       string
	SignerEmail      string
	NotifyByEmail    bool
	UnsubscribeToken string
}

// DispatchEmails drains unsent deliveries in insertion order, rate-limited.
// Failures are recorded on the row and retried on the next tick.
func (r *Runner) DispatchEmails(ctx context.Context) error {
	s, err := r.sites.Get()
	if err != nil {
		return fmt.Errorf("failed to load site: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT d.id, d.kind, p.id, p.action,
		       sig.name, sig.email, sig.notify_by_email, sig.unsubscribe_token
		FROM email_delivery d
		JOIN petition p ON d.petition_id = p.id
		JOIN signature sig ON d.signature_id = sig.id
		WHERE d.sent_at IS NULL
		ORDER BY d.enqueued_at, d.id
		LIMIT $1
	`, dispatchBatchSize)
	if err != nil {
		return fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	pending := []pendingDelivery{}
	for rows.Next() {
		var d pendingDelivery
		if err := rows.Scan(&d.ID, &d.Kind, &d.PetitionID, &d.Action,
			&d.SignerName, &d.SignerEmail, &d.NotifyByEmail, &d.UnsubscribeToken); err != nil {
			return fmt.Errorf("failed to scan delivery: %w", err)
		}
		pending = append(pending, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	// Per-petition context fetched once per batch
	summaries := map[string]string{}
	debates := map[string]*models.DebateOutcome{}

	for _, d := range pending {
		// Re-check opt-in at send time: signers may have unsubscribed
		// between enqueue and dispatch
		if !d.NotifyByEmail {
			if err := r.markSent(d.ID, "skipped: unsubscribed"); err != nil {
				return err
			}
			metrics.EmailsSent.WithLabelValues(d.Kind, "skipped").Inc()
			continue
		}

		summary, debate, err := r.deliveryContext(d, summaries, debates)
		if err != nil {
			return err
		}

		email, err := mailer.DeliveryEmail(s, d.Kind,
			models.Petition{ID: d.PetitionID, Action: d.Action},
			d.SignerName, d.UnsubscribeToken, summary, debate)
		if err != nil {
			return err
		}
		email.To = d.SignerEmail

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := r.mail.Send(ctx, email); err != nil {
			slog.Error("failed to send delivery", "delivery_id", d.ID, "error", err)
			if _, dbErr := r.db.Exec(`
				UPDATE email_delivery
				SET attempts = attempts + 1, last_error = $1
				WHERE id = $2
			`, err.Error(), d.ID); dbErr != nil {
				return fmt.Errorf("failed to record send error: %w", dbErr)
			}
			metrics.EmailsSent.WithLabelValues(d.Kind, "error").Inc()
			continue
		}

		if err := r.markSent(d.ID, ""); err != nil {
			return err
		}
		metrics.EmailsSent.WithLabelValues(d.Kind, "sent").Inc()
	}

	if len(pending) > 0 {
		slog.Info("email deliveries dispatched", "count", len(pending))
	}

	return nil
}

// deliveryContext loads the government response summary or debate outcome a
// delivery kind needs, caching per petition within the batch.
func (r *Runner) deliveryContext(d pendingDelivery, summaries map[string]string, debates map[string]*models.DebateOutcome) (string, *models.DebateOutcome, error) {
	switch d.Kind {
	case models.DeliveryGovernmentResponse:
		if s, ok := summaries[d.PetitionID]; ok {
			return s, nil, nil
		}
		var summary string
		err := r.db.QueryRow(`
			SELECT summary FROM government_response WHERE petition_id = $1
		`, d.PetitionID).Scan(&summary)
		if err != nil && err != sql.ErrNoRows {
			return "", nil, fmt.Errorf("failed to load government response: %w", err)
		}
		summaries[d.PetitionID] = summary
		return summary, nil, nil

	case models.DeliveryDebateOutcome:
		if o, ok := debates[d.PetitionID]; ok {
			return "", o, nil
		}
		var o models.DebateOutcome
		err := r.db.QueryRow(`
			SELECT petition_id, debated_on, debated, overview, transcript_url, video_url, created_at
			FROM debate_outcome WHERE petition_id = $1
		`, d.PetitionID).Scan(&o.PetitionID, &o.DebatedOn, &o.Debated,
			&o.Overview, &o.TranscriptURL, &o.VideoURL, &o.CreatedAt)
		if err == sql.ErrNoRows {
			debates[d.PetitionID] = nil
			return "", nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to load debate outcome: %w", err)
		}
		debates[d.PetitionID] = &o
		return "", &o, nil
	}

	return "", nil, nil
}

func (r *Runner) markSent(deliveryID, note string) error {
	var lastError interface{}
	if note != "" {
		lastError = note
	}
	_, err := r.db.Exec(`
		UPDATE email_delivery
		SET sent_at = $1, attempts = attempts + 1, last_error = $2
		WHERE id = $3
	`, time.Now(), lastError, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to mark delivery sent: %w", err)
	}
	return nil
}

// CloseExpiredPetitions moves open petitions past their deadline to closed.
func (r *Runner) CloseExpiredPetitions() error {
	now := time.Now()
	res, err := r.db.Exec(`
		UPDATE petition
		SET state = $1, closed_at = $2, updated_at = $2
		WHERE state = $3 AND closes_at IS NOT NULL AND closes_at <= $2
	`, models.StateClosed, now, models.StateOpen)
	if err != nil {
		return fmt.Errorf("failed to close petitions: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("petitions closed at deadline", "count", n)
	}
	return nil
}

// PrunePendingSignatures deletes signatures that were never validated.
// Creator signatures are kept: removing them would orphan pending petitions.
func (r *Runner) PrunePendingSignatures() error {
	cutoff := time.Now().Add(-pendingSignatureMaxAge)
	res, err := r.db.Exec(`
		DELETE FROM signature
		WHERE state = $1 AND role != $2 AND created_at < $3
	`, models.SignaturePending, models.RoleCreator, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune signatures: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("pending signatures pruned", "count", n)
	}
	return nil
}
