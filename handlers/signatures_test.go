// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
	"github.com/civicworks/epetitions/testutil"
)

func setupSignatureHandler(t *testing.T) (*SignatureHandler, *sql.DB, *mailer.Recorder) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	testutil.SeedTestSite(t, conn)
	rec := &mailer.Recorder{}
	h := NewSignatureHandler(conn, testutil.GetTestConfig(), site.NewManager(conn), rec)
	return h, conn, rec
}

func TestSignPetition(t *testing.T) {
	h, conn, rec := setupSignatureHandler(t)

	openID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	validatedID := testutil.CreateTestPetition(t, conn, models.StateValidated)
	closedID := testutil.CreateTestPetition(t, conn, models.StateClosed)

	tests := []struct {
		name           string
		petitionID     string
		requestBody    interface{}
		expectedStatus int
		expectedRole   string
	}{
		{
			name:       "sign open petition",
			petitionID: openID,
			requestBody: models.SignPetitionReq{
				Name:  "Bob",
				Email: "bob@example.com",
			},
			expectedStatus: 201,
			expectedRole:   models.RoleSigner,
		},
		{
			name:       "sign validated petition becomes sponsor",
			petitionID: validatedID,
			requestBody: models.SignPetitionReq{
				Name:  "Carol",
				Email: "carol@example.com",
			},
			expectedStatus: 201,
			expectedRole:   models.RoleSponsor,
		},
		{
			name:       "closed petition rejects signatures",
			petitionID: closedID,
			requestBody: models.SignPetitionReq{
				Name:  "Dave",
				Email: "dave@example.com",
			},
			expectedStatus: 409,
		},
		{
			name:       "unknown petition",
			petitionID: "nope",
			requestBody: models.SignPetitionReq{
				Name:  "Eve",
				Email: "eve@example.com",
			},
			expectedStatus: 404,
		},
		{
			name:           "missing name",
			petitionID:     openID,
			requestBody:    models.SignPetitionReq{Email: "frank@example.com"},
			expectedStatus: 400,
		},
		{
			name:           "missing email",
			petitionID:     openID,
			requestBody:    models.SignPetitionReq{Name: "Frank"},
			expectedStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/petitions/"+tt.petitionID+"/signatures", tt.requestBody, nil)
			req.SetPathValue("id", tt.petitionID)
			w := httptest.NewRecorder()

			h.SignPetition(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == 201 {
				var resp models.SignPetitionResponse
				testutil.AssertJSON(t, w, &resp)

				var role, state string
				err := conn.QueryRow(`
					SELECT role, state FROM signature WHERE id = $1
				`, resp.SignatureID).Scan(&role, &state)
				if err != nil {
					t.Fatalf("Failed to query signature: %v", err)
				}
				if role != tt.expectedRole {
					t.Errorf("Expected role '%s', got '%s'", tt.expectedRole, role)
				}
				if state != models.SignaturePending {
					t.Errorf("Expected state 'pending', got '%s'", state)
				}
			}
		})
	}

	// One validation email per successful signature
	if got := len(rec.Sent()); got != 2 {
		t.Errorf("Expected 2 validation emails, got %d", got)
	}
}

func TestSignPetitionDuplicateEmail(t *testing.T) {
	h, conn, rec := setupSignatureHandler(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	testutil.CreateTestSignature(t, conn, petitionID, "pending@example.com", models.RoleSigner, models.SignaturePending, true)
	testutil.CreateTestSignature(t, conn, petitionID, "done@example.com", models.RoleSigner, models.SignatureValidated, true)

	t.Run("pending duplicate resends validation email", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/petitions/"+petitionID+"/signatures", models.SignPetitionReq{
			Name:  "Pat",
			Email: "Pending@Example.com", // case-insensitive match
		}, nil)
		req.SetPathValue("id", petitionID)
		w := httptest.NewRecorder()

		h.SignPetition(w, req)
		testutil.AssertStatus(t, w, 200)

		if got := len(rec.Sent()); got != 1 {
			t.Errorf("Expected 1 resent email, got %d", got)
		}

		// No second row created
		var n int
		if err := conn.QueryRow(`
			SELECT COUNT(*) FROM signature WHERE petition_id = $1 AND email = 'pending@example.com'
		`, petitionID).Scan(&n); err != nil {
			t.Fatalf("Failed to count signatures: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 signature row, got %d", n)
		}
	})

	t.Run("validated duplicate conflicts", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/petitions/"+petitionID+"/signatures", models.SignPetitionReq{
			Name:  "Pat",
			Email: "done@example.com",
		}, nil)
		req.SetPathValue("id", petitionID)
		w := httptest.NewRecorder()

		h.SignPetition(w, req)
		testutil.AssertStatus(t, w, 409)
	})
}

func TestSignPetitionSponsorCap(t *testing.T) {
	h, conn, _ := setupSignatureHandler(t)

	// Test site caps sponsors at 5
	petitionID := testutil.CreateTestPetition(t, conn, models.StateValidated)
	for _, email := range []string{"s1@x.com", "s2@x.com", "s3@x.com", "s4@x.com", "s5@x.com"} {
		testutil.CreateTestSignature(t, conn, petitionID, email, models.RoleSponsor, models.SignaturePending, true)
	}

	req := testutil.MakeRequest("POST", "/petitions/"+petitionID+"/signatures", models.SignPetitionReq{
		Name:  "One Too Many",
		Email: "s6@x.com",
	}, nil)
	req.SetPathValue("id", petitionID)
	w := httptest.NewRecorder()

	h.SignPetition(w, req)
	testutil.AssertStatus(t, w, 409)
}

func TestVerifySignature(t *testing.T) {
	h, conn, _ := setupSignatureHandler(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	_, token, _ := testutil.CreateTestSignature(t, conn, petitionID, "v@example.com", models.RoleSigner, models.SignaturePending, true)

	t.Run("validates and counts once", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/signatures/verify?token="+token, nil, nil)
		w := httptest.NewRecorder()

		h.VerifySignature(w, req)
		testutil.AssertStatus(t, w, 200)

		var count int
		if err := conn.QueryRow(`SELECT signature_count FROM petition WHERE id = $1`, petitionID).Scan(&count); err != nil {
			t.Fatalf("Failed to query count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected count 1, got %d", count)
		}
	})

	t.Run("second verification is idempotent", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/signatures/verify?token="+token, nil, nil)
		w := httptest.NewRecorder()

		h.VerifySignature(w, req)
		testutil.AssertStatus(t, w, 200)

		var count int
		if err := conn.QueryRow(`SELECT signature_count FROM petition WHERE id = $1`, petitionID).Scan(&count); err != nil {
			t.Fatalf("Failed to query count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected count to stay 1, got %d", count)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/signatures/verify?token=bogus", nil, nil)
		w := httptest.NewRecorder()

		h.VerifySignature(w, req)
		testutil.AssertStatus(t, w, 404)
	})

	t.Run("missing token", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/signatures/verify", nil, nil)
		w := httptest.NewRecorder()

		h.VerifySignature(w, req)
		testutil.AssertStatus(t, w, 400)
	})
}

func TestVerifyCreatorValidatesPetition(t *testing.T) {
	h, conn, _ := setupSignatureHandler(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StatePending)
	_, token, _ := testutil.CreateTestSignature(t, conn, petitionID, "creator@example.com", models.RoleCreator, models.SignaturePending, true)

	req := testutil.MakeRequest("GET", "/signatures/verify?token="+token, nil, nil)
	w := httptest.NewRecorder()

	h.VerifySignature(w, req)
	testutil.AssertStatus(t, w, 200)

	var resp models.VerifySignatureResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.PetitionState != models.StateValidated {
		t.Errorf("Expected petition state 'validated', got '%s'", resp.PetitionState)
	}

	var state string
	if err := conn.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&state); err != nil {
		t.Fatalf("Failed to query petition: %v", err)
	}
	if state != models.StateValidated {
		t.Errorf("Expected petition 'validated', got '%s'", state)
	}
}

func TestVerifySponsorReachesModerationThreshold(t *testing.T) {
	h, conn, _ := setupSignatureHandler(t)

	// Test site moderation threshold is 2 validated sponsors
	petitionID := testutil.CreateTestPetition(t, conn, models.StateValidated)
	testutil.CreateTestSignature(t, conn, petitionID, "sp1@example.com", models.RoleSponsor, models.SignatureValidated, true)
	_, token, _ := testutil.CreateTestSignature(t, conn, petitionID, "sp2@example.com", models.RoleSponsor, models.SignaturePending, true)

	req := testutil.MakeRequest("GET", "/signatures/verify?token="+token, nil, nil)
	w := httptest.NewRecorder()

	h.VerifySignature(w, req)
	testutil.AssertStatus(t, w, 200)

	var state string
	if err := conn.QueryRow(`SELECT state FROM petition WHERE id = $1`, petitionID).Scan(&state); err != nil {
		t.Fatalf("Failed to query petition: %v", err)
	}
	if state != models.StateSponsored {
		t.Errorf("Expected petition 'sponsored', got '%s'", state)
	}
}

func TestUnsubscribe(t *testing.T) {
	h, conn, _ := setupSignatureHandler(t)

	petitionID := testutil.CreateTestPetition(t, conn, models.StateOpen)
	sigID, _, unsubToken := testutil.CreateTestSignature(t, conn, petitionID, "u@example.com", models.RoleSigner, models.SignatureValidated, true)

	t.Run("unsubscribes", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/signatures/unsubscribe?token="+unsubToken, nil, nil)
		w := httptest.NewRecorder()

		h.Unsubscribe(w, req)
		testutil.AssertStatus(t, w, 200)

		var notify bool
		if err := conn.QueryRow(`SELECT notify_by_email FROM signature WHERE id = $1`, sigID).Scan(&notify); err != nil {
			t.Fatalf("Failed to query signature: %v", err)
		}
		if notify {
			t.Error("Expected notify_by_email to be false")
		}
	})

	t.Run("repeat unsubscribe still succeeds", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/signatures/unsubscribe?token="+unsubToken, nil, nil)
		w := httptest.NewRecorder()

		h.Unsubscribe(w, req)
		testutil.AssertStatus(t, w, 200)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/signatures/unsubscribe?token=bogus", nil, nil)
		w := httptest.NewRecorder()

		h.Unsubscribe(w, req)
		testutil.AssertStatus(t, w, 404)
	})
}
