// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/civicworks/epetitions/auth"
	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/metrics"
	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

type SignatureHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	sites *site.Manager
	mail  mailer.Mailer
}

func NewSignatureHandler(db *sql.DB, cfg cliparse.Config, sites *site.Manager, mail mailer.Mailer) *SignatureHandler {
	return &SignatureHandler{db: db, cfg: cfg, sites: sites, mail: mail}
}

// SignPetition handles POST /petitions/{id}/signatures
//
// A signature on a validated petition is a sponsorship; on an open petition
// it is a regular signature. Anything else is not accepting signatures.
func (h *SignatureHandler) SignPetition(w http.ResponseWriter, r *http.Request) {
	petitionID := r.PathValue("id")
	if petitionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "petition_id is required")
		return
	}

	var req models.SignPetitionReq
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	s, err := h.sites.Get()
	if err != nil {
		slog.Error("failed to load site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Site configuration unavailable")
		return
	}
	if !s.Enabled {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Signing is currently disabled")
		return
	}

	var petitionState, action string
	err = h.db.QueryRow(`
		SELECT state, action FROM petition WHERE id = $1
	`, petitionID).Scan(&petitionState, &action)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Petition not found")
		return
	}
	if err != nil {
		slog.Error("failed to query petition", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var role string
	switch petitionState {
	case models.StateValidated:
		role = models.RoleSponsor
		var sponsors int
		err = h.db.QueryRow(`
			SELECT COUNT(*) FROM signature WHERE petition_id = $1 AND role = $2
		`, petitionID, models.RoleSponsor).Scan(&sponsors)
		if err != nil {
			slog.Error("failed to count sponsors", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if sponsors >= s.MaximumSponsors {
			middleware.ErrorResponse(w, http.StatusConflict, "Petition has enough sponsors")
			return
		}
	case models.StateOpen:
		role = models.RoleSigner
	default:
		middleware.ErrorResponse(w, http.StatusConflict, "Petition is not open for signatures")
		return
	}

	email := strings.ToLower(req.Email)

	// One signature per email per petition. A still-pending duplicate gets
	// its validation email resent instead of a new row.
	var existingID, existingState, existingToken string
	err = h.db.QueryRow(`
		SELECT id, state, validation_token FROM signature
		WHERE petition_id = $1 AND email = $2
	`, petitionID, email).Scan(&existingID, &existingState, &existingToken)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("failed to query existing signature", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if err == nil {
		if existingState == models.SignaturePending {
			msg := mailer.ValidationEmail(s, action, req.Name, existingToken, false)
			msg.To = email
			if err := h.mail.Send(context.Background(), msg); err != nil {
				slog.Warn("failed to resend validation email", "signature_id", existingID, "error", err)
			}
			middleware.JSONResponse(w, http.StatusOK, models.SignPetitionResponse{
				SignatureID: existingID,
				Message:     "Validation email resent",
			})
			return
		}
		middleware.ErrorResponse(w, http.StatusConflict, "Email address has already signed this petition")
		return
	}

	signatureID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate signature ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to sign petition")
		return
	}
	validationToken, err := auth.GenerateSignatureToken()
	if err != nil {
		slog.Error("failed to generate validation token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to sign petition")
		return
	}
	unsubscribeToken, _ := auth.GenerateSignatureToken()

	notify := true
	if req.NotifyByEmail != nil {
		notify = *req.NotifyByEmail
	}
	locationCode := req.LocationCode
	if locationCode == "" {
		locationCode = "GB"
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)

	_, err = h.db.Exec(`
		INSERT INTO signature (id, petition_id, name, email, postcode, location_code, state, role,
			notify_by_email, validation_token, unsubscribe_token, ip_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, signatureID, petitionID, req.Name, email, req.Postcode, locationCode,
		models.SignaturePending, role, notify, validationToken, unsubscribeToken,
		ipHash, time.Now())
	if err != nil {
		slog.Error("failed to insert signature", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to sign petition")
		return
	}

	msg := mailer.ValidationEmail(s, action, req.Name, validationToken, false)
	msg.To = email
	if err := h.mail.Send(context.Background(), msg); err != nil {
		slog.Warn("failed to send validation email", "signature_id", signatureID, "error", err)
	}

	middleware.JSONResponse(w, http.StatusCreated, models.SignPetitionResponse{
		SignatureID: signatureID,
		Message:     "Check your email to confirm your signature",
	})
}

// VerifySignature handles GET /signatures/verify?token=
//
// Idempotent: a second click on the validation link reports success without
// counting the signature twice.
func (h *SignatureHandler) VerifySignature(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	var signatureID, petitionID, sigState, role string
	err := h.db.QueryRow(`
		SELECT id, petition_id, state, role FROM signature
		WHERE validation_token = $1
	`, token).Scan(&signatureID, &petitionID, &sigState, &role)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Invalid or expired token")
		return
	}
	if err != nil {
		slog.Error("failed to query signature", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if sigState == models.SignatureValidated {
		var petitionState string
		if err := h.db.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&petitionState); err != nil {
			slog.Error("failed to query petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, models.VerifySignatureResponse{
			PetitionID:    petitionID,
			PetitionState: petitionState,
			Message:       "Signature already validated",
		})
		return
	}
	if sigState == models.SignatureInvalidated {
		middleware.ErrorResponse(w, http.StatusGone, "Signature is no longer valid")
		return
	}

	// Fetched ahead of the transaction so no query runs outside it below
	s, err := h.sites.Get()
	if err != nil {
		slog.Error("failed to load site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Site configuration unavailable")
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

	// State guard makes concurrent double-clicks count once
	res, err := tx.Exec(`
		UPDATE signature SET state = $1, validated_at = $2
		WHERE id = $3 AND state = $4
	`, models.SignatureValidated, now, signatureID, models.SignaturePending)
	if err != nil {
		slog.Error("failed to validate signature", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	petitionState := ""
	if claimed > 0 {
		_, err = tx.Exec(`
			UPDATE petition SET signature_count = signature_count + 1, updated_at = $1
			WHERE id = $2
		`, now, petitionID)
		if err != nil {
			slog.Error("failed to increment signature count", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		if err := tx.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&petitionState); err != nil {
			slog.Error("failed to query petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		switch {
		case role == models.RoleCreator && petitionState == models.StatePending:
			// Creator confirmed: petition moves on to collecting sponsors
			if _, err := tx.Exec(`
				UPDATE petition SET state = $1, updated_at = $2 WHERE id = $3
			`, models.StateValidated, now, petitionID); err != nil {
				slog.Error("failed to update petition state", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			petitionState = models.StateValidated

		case role == models.RoleSponsor && petitionState == models.StateValidated:
			var sponsors int
			if err := tx.QueryRow(`
				SELECT COUNT(*) FROM signature
				WHERE petition_id = $1 AND role = $2 AND state = $3
			`, petitionID, models.RoleSponsor, models.SignatureValidated).Scan(&sponsors); err != nil {
				slog.Error("failed to count sponsors", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if sponsors >= s.ThresholdForModeration {
				if _, err := tx.Exec(`
					UPDATE petition SET state = $1, updated_at = $2 WHERE id = $3
				`, models.StateSponsored, now, petitionID); err != nil {
					slog.Error("failed to update petition state", "error", err)
					middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
					return
				}
				petitionState = models.StateSponsored
				slog.Info("petition reached moderation threshold", "petition_id", petitionID, "sponsors", sponsors)
			}
		}
	} else {
		if err := tx.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&petitionState); err != nil {
			slog.Error("failed to query petition", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if claimed > 0 {
		metrics.SignaturesValidated.Inc()
	}

	middleware.JSONResponse(w, http.StatusOK, models.VerifySignatureResponse{
		PetitionID:    petitionID,
		PetitionState: petitionState,
		Message:       "Signature validated",
	})
}

// Unsubscribe handles POST /signatures/unsubscribe?token=
func (h *SignatureHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	res, err := h.db.Exec(`
		UPDATE signature SET notify_by_email = $1 WHERE unsubscribe_token = $2
	`, false, token)
	if err != nil {
		slog.Error("failed to unsubscribe", "error", err)
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
		middleware.ErrorResponse(w, http.StatusNotFound, "Invalid token")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "You will no longer receive emails about this petition",
	})
}
