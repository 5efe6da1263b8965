// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/jobs"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/metrics"
	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

// ModerationHandler serves the moderator API. Every route is behind
// middleware.RequireModerator.
type ModerationHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	sites *site.Manager
	mail  mailer.Mailer
}

func NewModerationHandler(db *sql.DB, cfg cliparse.Config, sites *site.Manager, mail mailer.Mailer) *ModerationHandler {
	return &ModerationHandler{db: db, cfg: cfg, sites: sites, mail: mail}
}

// ListQueue handles GET /moderation/petitions
// Defaults to the sponsored state, which is the moderation queue proper.
func (h *ModerationHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = models.StateSponsored
	}

	rows, err := h.db.Query(`
		SELECT `+petitionColumns+`
		FROM petition
		WHERE state = $1
		ORDER BY created_at ASC
	`, state)
	if err != nil {
		slog.Error("failed to query moderation queue", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	petitions := []models.Petition{}
	for rows.Next() {
		p, err := scanPetition(rows)
		if err != nil {
			slog.Error("failed to scan petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		petitions = append(petitions, p)
	}

	middleware.JSONResponse(w, http.StatusOK, models.PetitionListResponse{
		Petitions: petitions,
		Page:      1,
		PerPage:   len(petitions),
		Total:     len(petitions),
	})
}

// ApprovePetition handles POST /moderation/petitions/{id}/approve
// Moves a sponsored petition to open and starts its signing window.
func (h *ModerationHandler) ApprovePetition(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")

	s, err := h.sites.Get()
	if err != nil {
		slog.Error("failed to load site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Site configuration unavailable")
		return
	}

	now := time.Now()
	closesAt := now.AddDate(0, 0, s.PetitionDurationDays)

	res, err := h.db.Exec(`
		UPDATE petition
		SET state = $1, open_at = $2, closes_at = $3, updated_at = $2
		WHERE id = $4 AND state = $5
	`, models.StateOpen, now, closesAt, petitionID, models.StateSponsored)
	if err != nil {
		slog.Error("failed to approve petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n == 0 {
		// Either no such petition or it is not awaiting moderation
		var exists bool
		if err := h.db.QueryRow(`SELECT COUNT(*) > 0 FROM petition WHERE id = $1`, petitionID).Scan(&exists); err != nil {
			slog.Error("failed to query petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if !exists {
			middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		} else {
			middleware.ErrorResponse(w, http.StatusConflict, "Petition is not awaiting moderation")
		}
		return
	}

	slog.Info("petition approved", "petition_id", petitionID, "closes_at", closesAt)

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"petition_id": petitionID,
		"state":       models.StateOpen,
		"open_at":     now,
		"closes_at":   closesAt,
	})
}

// RejectPetition handles POST /moderation/petitions/{id}/reject
// Libellous and offensive rejections hide the petition entirely.
func (h *ModerationHandler) RejectPetition(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")

	var req models.RejectPetitionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !models.ValidRejectionCodes[req.Code] {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid rejection code")
		return
	}

	newState := models.StateRejected
	if models.HiddenRejectionCodes[req.Code] {
		newState = models.StateHidden
	}

	res, err := h.db.Exec(`
		UPDATE petition
		SET state = $1, rejection_code = $2, rejection_details = $3, updated_at = $4
		WHERE id = $5 AND state IN ($6, $7, $8)
	`, newState, req.Code, req.Details, time.Now(), petitionID,
		models.StateValidated, models.StateSponsored, models.StateOpen)
	if err != nil {
		slog.Error("failed to reject petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n == 0 {
		var exists bool
		if err := h.db.QueryRow(`SELECT COUNT(*) > 0 FROM petition WHERE id = $1`, petitionID).Scan(&exists); err != nil {
			slog.Error("failed to query petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if !exists {
			middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		} else {
			middleware.ErrorResponse(w, http.StatusConflict, "Petition cannot be rejected in its current state")
		}
		return
	}

	slog.Info("petition rejected", "petition_id", petitionID, "code", req.Code, "state", newState)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"petition_id": petitionID,
		"state":       newState,
		"code":        req.Code,
	})
}

// RecordResponse handles POST /moderation/petitions/{id}/response
//
// The first response on a petition stamps government_response_at and
// enqueues a notification per validated opt-in signature in the same
// transaction. Later edits update the text without re-notifying.
func (h *ModerationHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")

	var req models.GovernmentResponseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Summary == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "summary is required")
		return
	}

	var state string
	err := h.db.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&state)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}
	if err != nil {
		slog.Error("failed to query petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if state != models.StateOpen && state != models.StateClosed {
		middleware.ErrorResponse(w, http.StatusConflict, "Petition is not open or closed")
		return
	}

	now := time.Now()
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO government_response (petition_id, summary, details, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (petition_id) DO UPDATE SET summary = $2, details = $3
	`, petitionID, req.Summary, req.Details, now)
	if err != nil {
		slog.Error("failed to upsert government response", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := tx.Exec(`
		UPDATE petition SET government_response_at = $1, updated_at = $1
		WHERE id = $2 AND government_response_at IS NULL
	`, now, petitionID)
	if err != nil {
		slog.Error("failed to stamp government response", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	enqueued := 0
	if claimed > 0 {
		enqueued, err = jobs.EnqueueDeliveries(tx, petitionID, models.DeliveryGovernmentResponse)
		if err != nil {
			slog.Error("failed to enqueue deliveries", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if enqueued > 0 {
		metrics.DeliveriesEnqueued.WithLabelValues(models.DeliveryGovernmentResponse).Add(float64(enqueued))
	}

	slog.Info("government response recorded", "petition_id", petitionID, "enqueued", enqueued)

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"petition_id": petitionID,
		"enqueued":    enqueued,
	})
}

// RecordDebate handles POST /moderation/petitions/{id}/debate
// Same stamp-then-enqueue shape as RecordResponse.
func (h *ModerationHandler) RecordDebate(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")

	var req models.DebateOutcomeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.DebatedOn.IsZero() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "debated_on is required")
		return
	}

	var state string
	err := h.db.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&state)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}
	if err != nil {
		slog.Error("failed to query petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if state != models.StateOpen && state != models.StateClosed {
		middleware.ErrorResponse(w, http.StatusConflict, "Petition is not open or closed")
		return
	}

	now := time.Now()
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO debate_outcome (petition_id, debated_on, debated, overview, transcript_url, video_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (petition_id) DO UPDATE SET
			debated_on = $2, debated = $3, overview = $4, transcript_url = $5, video_url = $6
	`, petitionID, req.DebatedOn, req.Debated, req.Overview, req.TranscriptURL, req.VideoURL, now)
	if err != nil {
		slog.Error("failed to upsert debate outcome", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := tx.Exec(`
		UPDATE petition SET debate_outcome_at = $1, updated_at = $1
		WHERE id = $2 AND debate_outcome_at IS NULL
	`, now, petitionID)
	if err != nil {
		slog.Error("failed to stamp debate outcome", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	enqueued := 0
	if claimed > 0 {
		enqueued, err = jobs.EnqueueDeliveries(tx, petitionID, models.DeliveryDebateOutcome)
		if err != nil {
			slog.Error("failed to enqueue deliveries", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if enqueued > 0 {
		metrics.DeliveriesEnqueued.WithLabelValues(models.DeliveryDebateOutcome).Add(float64(enqueued))
	}

	slog.Info("debate outcome recorded", "petition_id", petitionID, "enqueued", enqueued)

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"petition_id": petitionID,
		"enqueued":    enqueued,
	})
}
