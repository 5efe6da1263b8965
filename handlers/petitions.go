// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civicworks/epetitions/auth"
	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

// Petition content limits
const (
	maxActionLen            = 100
	maxBackgroundLen        = 500
	maxAdditionalDetailsLen = 1000
)

type PetitionHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	sites *site.Manager
	mail  mailer.Mailer
}

func NewPetitionHandler(db *sql.DB, cfg cliparse.Config, sites *site.Manager, mail mailer.Mailer) *PetitionHandler {
	return &PetitionHandler{db: db, cfg: cfg, sites: sites, mail: mail}
}

// petitionColumns is the SELECT list matched by scanPetition.
const petitionColumns = `id, action, background, additional_details, state, signature_count,
       open_at, closes_at, closed_at, rejection_code, rejection_details,
       response_threshold_reached_at, debate_threshold_reached_at,
       government_response_at, debate_outcome_at, created_at`

func scanPetition(row interface{ Scan(...interface{}) error }) (models.Petition, error) {
	var p models.Petition
	err := row.Scan(
		&p.ID, &p.Action, &p.Background, &p.AdditionalDetails, &p.State, &p.SignatureCount,
		&p.OpenAt, &p.ClosesAt, &p.ClosedAt, &p.RejectionCode, &p.RejectionDetails,
		&p.ResponseThresholdReachedAt, &p.DebateThresholdReachedAt,
		&p.GovernmentResponseAt, &p.DebateOutcomeAt, &p.CreatedAt,
	)
	return p, err
}

// CreatePetition handles POST /petitions
func (h *PetitionHandler) CreatePetition(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePetitionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Action == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "action is required")
		return
	}
	if len(req.Action) > maxActionLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "action must be at most 100 characters")
		return
	}
	if req.Background == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "background is required")
		return
	}
	if len(req.Background) > maxBackgroundLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "background must be at most 500 characters")
		return
	}
	if len(req.AdditionalDetails) > maxAdditionalDetailsLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "additional_details must be at most 1000 characters")
		return
	}
	if req.Creator.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "creator.name is required")
		return
	}
	if !strings.Contains(req.Creator.Email, "@") {
		middleware.ErrorResponse(w, http.StatusBadRequest, "creator.email is required")
		return
	}

	s, err := h.sites.Get()
	if err != nil {
		slog.Error("failed to load site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Site configuration unavailable")
		return
	}
	if !s.Enabled {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "New petitions are currently disabled")
		return
	}

	// Generate petition and creator signature IDs
	petitionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate petition ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create petition")
		return
	}
	signatureID, _ := auth.GenerateID(16)
	validationToken, err := auth.GenerateSignatureToken()
	if err != nil {
		slog.Error("failed to generate validation token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create petition")
		return
	}
	unsubscribeToken, _ := auth.GenerateSignatureToken()

	notify := true
	if req.Creator.NotifyByEmail != nil {
		notify = *req.Creator.NotifyByEmail
	}

	locationCode := req.Creator.LocationCode
	if locationCode == "" {
		locationCode = "GB"
	}

	clientIP := middleware.GetClientIP(r)
	ipHash := auth.HashIP(clientIP, h.cfg.IPHashSalt)
	now := time.Now()

	// Begin transaction: petition plus its creator signature
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO petition (id, action, background, additional_details, state, signature_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`, petitionID, req.Action, req.Background, req.AdditionalDetails, models.StatePending, now)
	if err != nil {
		slog.Error("failed to insert petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create petition")
		return
	}

	_, err = tx.Exec(`
		INSERT INTO signature (id, petition_id, name, email, postcode, location_code, state, role,
			notify_by_email, validation_token, unsubscribe_token, ip_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, signatureID, petitionID, req.Creator.Name, strings.ToLower(req.Creator.Email),
		req.Creator.Postcode, locationCode, models.SignaturePending, models.RoleCreator,
		notify, validationToken, unsubscribeToken, ipHash, now)
	if err != nil {
		slog.Error("failed to insert creator signature", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create petition")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create petition")
		return
	}

	// Send validation email (non-fatal: the signer can re-request it by
	// signing again)
	email := mailer.ValidationEmail(s, req.Action, req.Creator.Name, validationToken, true)
	email.To = strings.ToLower(req.Creator.Email)
	if err := h.mail.Send(context.Background(), email); err != nil {
		slog.Warn("failed to send validation email", "petition_id", petitionID, "error", err)
	}

	slog.Info("petition created", "petition_id", petitionID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePetitionResponse{
		PetitionID: petitionID,
		State:      models.StatePending,
		Message:    "Check your email to confirm your petition",
	})
}

// publiclyListable are the states exposed by GET /petitions
var publiclyListable = map[string]bool{
	models.StateOpen:     true,
	models.StateClosed:   true,
	models.StateRejected: true,
}

// ListPetitions handles GET /petitions
func (h *PetitionHandler) ListPetitions(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = models.StateOpen
	}
	if !publiclyListable[state] {
		middleware.ErrorResponse(w, http.StatusBadRequest, "state must be one of: open, closed, rejected")
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	where := "WHERE state = $1"
	args := []interface{}{state}
	if search != "" {
		where += " AND LOWER(action) LIKE $2"
		args = append(args, "%"+search+"%")
	}

	var total int
	err := h.db.QueryRow("SELECT COUNT(*) FROM petition "+where, args...).Scan(&total)
	if err != nil {
		slog.Error("failed to count petitions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	limitPos := len(args) + 1
	args = append(args, perPage, (page-1)*perPage)
	rows, err := h.db.Query(`
		SELECT `+petitionColumns+`
		FROM petition `+where+`
		ORDER BY signature_count DESC, created_at DESC
		LIMIT $`+strconv.Itoa(limitPos)+` OFFSET $`+strconv.Itoa(limitPos+1),
		args...)
	if err != nil {
		slog.Error("failed to query petitions", "error", err)
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
		Page:      page,
		PerPage:   perPage,
		Total:     total,
	})
}

// publiclyVisible are the states exposed by GET /petitions/{id}
var publiclyVisible = map[string]bool{
	models.StateOpen:     true,
	models.StateClosed:   true,
	models.StateRejected: true,
}

// GetPetition handles GET /petitions/{id}
func (h *PetitionHandler) GetPetition(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")
	if petitionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "petition_id is required")
		return
	}

	p, err := scanPetition(h.db.QueryRow(`
		SELECT `+petitionColumns+`
		FROM petition
		WHERE id = $1
	`, petitionID))
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}
	if err != nil {
		slog.Error("failed to query petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Unmoderated and hidden petitions are not publicly visible
	if !publiclyVisible[p.State] {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}

	detail := models.PetitionDetail{Petition: p}

	var gr models.GovernmentResponse
	err = h.db.QueryRow(`
		SELECT petition_id, summary, details, created_at
		FROM government_response
		WHERE petition_id = $1
	`, petitionID).Scan(&gr.PetitionID, &gr.Summary, &gr.Details, &gr.CreatedAt)
	if err == nil {
		detail.GovernmentResponse = &gr
	} else if err != sql.ErrNoRows {
		slog.Error("failed to query government response", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var do models.DebateOutcome
	err = h.db.QueryRow(`
		SELECT petition_id, debated_on, debated, overview, transcript_url, video_url, created_at
		FROM debate_outcome
		WHERE petition_id = $1
	`, petitionID).Scan(&do.PetitionID, &do.DebatedOn, &do.Debated,
		&do.Overview, &do.TranscriptURL, &do.VideoURL, &do.CreatedAt)
	if err == nil {
		detail.DebateOutcome = &do
	} else if err != sql.ErrNoRows {
		slog.Error("failed to query debate outcome", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}

// GetSignatureCount handles GET /petitions/{id}/count
// Visible for any publicly visible petition, even while collecting
func (h *PetitionHandler) GetSignatureCount(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")
	if petitionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "petition_id is required")
		return
	}

	var state string
	var count int
	err := h.db.QueryRow(`
		SELECT state, signature_count FROM petition WHERE id = $1
	`, petitionID).Scan(&state, &count)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}
	if err != nil {
		slog.Error("failed to query petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !publiclyVisible[state] {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SignatureCountResponse{
		PetitionID:     petitionID,
		SignatureCount: count,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
