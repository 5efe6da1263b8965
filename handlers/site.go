// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

type SiteHandler struct {
	sites *site.Manager
}

func NewSiteHandler(sites *site.Manager) *SiteHandler {
	return &SiteHandler{sites: sites}
}

// GetSite handles GET /site
func (h *SiteHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	s, err := h.sites.Get()
	if err != nil {
		slog.Error("failed to load site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Site configuration unavailable")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, s)
}

// UpdateSite handles PUT /site (moderator only)
func (h *SiteHandler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSiteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.PetitionDurationDays != nil && *req.PetitionDurationDays < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "petition_duration_days must be positive")
		return
	}
	if req.MinimumSponsors != nil && *req.MinimumSponsors < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "minimum_sponsors must be positive")
		return
	}
	if req.MaximumSponsors != nil && *req.MaximumSponsors < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "maximum_sponsors must be positive")
		return
	}
	if req.ThresholdForResponse != nil && *req.ThresholdForResponse < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "threshold_for_response must be positive")
		return
	}
	if req.ThresholdForDebate != nil && *req.ThresholdForDebate < 1 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "threshold_for_debate must be positive")
		return
	}

	s, err := h.sites.Update(req)
	if err != nil {
		slog.Error("failed to update site", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update site")
		return
	}

	slog.Info("site settings updated")
	middleware.JSONResponse(w, http.StatusOK, s)
}
