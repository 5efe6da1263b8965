// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicworks/epetitions/auth"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/site"
	"github.com/civicworks/epetitions/testutil"
)

func setupRouter(t *testing.T) *http.ServeMux {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	testutil.SeedTestSite(t, conn)
	cfg := testutil.GetTestConfig()
	return NewRouter(conn, cfg, site.NewManager(conn), &mailer.Recorder{})
}

func TestRoutes(t *testing.T) {
	mux := setupRouter(t)
	cfg := testutil.GetTestConfig()
	moderatorKey := auth.GenerateModeratorKey(cfg.ModeratorKeySalt)

	tests := []struct {
		name           string
		method         string
		path           string
		moderatorKey   string
		expectedStatus int
	}{
		{"health check", "GET", "/health", "", 200},
		{"metrics endpoint", "GET", "/metrics", "", 200},
		{"root", "GET", "/", "", 200},
		{"unknown path", "GET", "/nope", "", 404},
		{"site settings public", "GET", "/site", "", 200},
		{"petition list public", "GET", "/petitions", "", 200},
		{"unknown petition", "GET", "/petitions/missing", "", 404},
		{"moderation requires key", "GET", "/moderation/petitions", "", 401},
		{"moderation with key", "GET", "/moderation/petitions", moderatorKey, 200},
		{"site update requires key", "PUT", "/site", "", 401},
		{"wrong method rejected", "DELETE", "/petitions", "", 405},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers map[string]string
			if tt.moderatorKey != "" {
				headers = map[string]string{"X-Moderator-Key": tt.moderatorKey}
			}
			req := testutil.MakeRequest(tt.method, tt.path, nil, headers)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}
}
