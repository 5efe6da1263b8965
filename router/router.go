// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/handlers"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/site"
)

// NewRouter builds the HTTP route table.
func NewRouter(db *sql.DB, cfg cliparse.Config, sites *site.Manager, mail mailer.Mailer) *http.ServeMux {
	mux := http.NewServeMux()

	petitions := handlers.NewPetitionHandler(db, cfg, sites, mail)
	signatures := handlers.NewSignatureHandler(db, cfg, sites, mail)
	moderation := handlers.NewModerationHandler(db, cfg, sites, mail)
	siteHandler := handlers.NewSiteHandler(sites)

	// public wraps a handler with logging and metrics
	public := func(pattern string, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithMetrics(pattern, h))
	}
	// moderator additionally requires a valid X-Moderator-Key header
	moderator := func(pattern string, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithMetrics(pattern,
			middleware.RequireModerator(cfg.ModeratorKeySalt, h)))
	}

	// Petitions
	mux.HandleFunc("POST /petitions", public("/petitions", petitions.CreatePetition))
	mux.HandleFunc("GET /petitions", public("/petitions", petitions.ListPetitions))
	mux.HandleFunc("GET /petitions/{id}", public("/petitions/{id}", petitions.GetPetition))
	mux.HandleFunc("GET /petitions/{id}/count", public("/petitions/{id}/count", petitions.GetSignatureCount))

	// Signatures
	mux.HandleFunc("POST /petitions/{id}/signatures", public("/petitions/{id}/signatures", signatures.SignPetition))
	mux.HandleFunc("GET /signatures/verify", public("/signatures/verify", signatures.VerifySignature))
	mux.HandleFunc("POST /signatures/unsubscribe", public("/signatures/unsubscribe", signatures.Unsubscribe))

	// Moderation (key required)
	mux.HandleFunc("GET /moderation/petitions", moderator("/moderation/petitions", moderation.ListQueue))
	mux.HandleFunc("POST /moderation/petitions/{id}/approve", moderator("/moderation/petitions/{id}/approve", moderation.ApprovePetition))
	mux.HandleFunc("POST /moderation/petitions/{id}/reject", moderator("/moderation/petitions/{id}/reject", moderation.RejectPetition))
	mux.HandleFunc("POST /moderation/petitions/{id}/response", moderator("/moderation/petitions/{id}/response", moderation.RecordResponse))
	mux.HandleFunc("POST /moderation/petitions/{id}/debate", moderator("/moderation/petitions/{id}/debate", moderation.RecordDebate))

	// Site settings
	mux.HandleFunc("GET /site", public("/site", siteHandler.GetSite))
	mux.HandleFunc("PUT /site", moderator("/site", siteHandler.UpdateSite))

	// Operational endpoints skip the logging middleware; they are polled
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.ErrorResponse(w, http.StatusNotFound, "Not found")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, map[string]string{
			"service": "epetitions",
			"status":  "running",
		})
	})

	return mux
}
