// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Petition state constants
const (
	StatePending   = "pending"
	StateValidated = "validated"
	StateSponsored = "sponsored"
	StateOpen      = "open"
	StateRejected  = "rejected"
	StateHidden    = "hidden"
	StateClosed    = "closed"
)

// Signature state constants
const (
	SignaturePending     = "pending"
	SignatureValidated   = "validated"
	SignatureInvalidated = "invalidated"
)

// Signature role constants
const (
	RoleCreator = "creator"
	RoleSponsor = "sponsor"
	RoleSigner  = "signer"
)

// Rejection code constants. Libellous and offensive rejections hide the
// petition entirely instead of publishing the rejection.
const (
	RejectionDuplicate  = "duplicate"
	RejectionNoAction   = "no-action"
	RejectionIrrelevant = "irrelevant"
	RejectionHonours    = "honours"
	RejectionLibellous  = "libellous"
	RejectionOffensive  = "offensive"
)

// HiddenRejectionCodes lists the codes that hide instead of reject.
var HiddenRejectionCodes = map[string]bool{
	RejectionLibellous: true,
	RejectionOffensive: true,
}

// ValidRejectionCodes lists every accepted rejection code.
var ValidRejectionCodes = map[string]bool{
	RejectionDuplicate:  true,
	RejectionNoAction:   true,
	RejectionIrrelevant: true,
	RejectionHonours:    true,
	RejectionLibellous:  true,
	RejectionOffensive:  true,
}

// Email delivery kind constants
const (
	DeliveryResponseThreshold  = "response_threshold"
	DeliveryDebateThreshold    = "debate_threshold"
	DeliveryGovernmentResponse = "government_response"
	DeliveryDebateOutcome      = "debate_outcome"
)

// Request types

type CreatePetitionRequest struct {
	Action            string          `json:"action"`
	Background        string          `json:"background"`
	AdditionalDetails string          `json:"additional_details"`
	Creator           SignPetitionReq `json:"creator"`
}

// SignPetitionReq is the signer payload, shared by petition creation
// (creator block) and the public signing endpoint.
type SignPetitionReq struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Postcode      string `json:"postcode"`
	LocationCode  string `json:"location_code"`
	NotifyByEmail *bool  `json:"notify_by_email"` // nil means opt in
}

type RejectPetitionRequest struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}

type GovernmentResponseRequest struct {
	Summary string `json:"summary"`
	Details string `json:"details"`
}

type DebateOutcomeRequest struct {
	DebatedOn     time.Time `json:"debated_on"`
	Debated       bool      `json:"debated"`
	Overview      string    `json:"overview"`
	TranscriptURL string    `json:"transcript_url"`
	VideoURL      string    `json:"video_url"`
}

type UpdateSiteRequest struct {
	Title                  *string `json:"title"`
	URL                    *string `json:"url"`
	EmailFrom              *string `json:"email_from"`
	PetitionDurationDays   *int    `json:"petition_duration_days"`
	MinimumSponsors        *int    `json:"minimum_sponsors"`
	MaximumSponsors        *int    `json:"maximum_sponsors"`
	ThresholdForModeration *int    `json:"threshold_for_moderation"`
	ThresholdForResponse   *int    `json:"threshold_for_response"`
	ThresholdForDebate     *int    `json:"threshold_for_debate"`
	Enabled                *bool   `json:"enabled"`
	Protected              *bool   `json:"protected"`
}

// Response types

type CreatePetitionResponse struct {
	PetitionID string `json:"petition_id"`
	State      string `json:"state"`
	Message    string `json:"message"`
}

type SignPetitionResponse struct {
	SignatureID string `json:"signature_id"`
	Message     string `json:"message"`
}

type VerifySignatureResponse struct {
	PetitionID    string `json:"petition_id"`
	PetitionState string `json:"petition_state"`
	Message       string `json:"message"`
}

type SignatureCountResponse struct {
	PetitionID     string `json:"petition_id"`
	SignatureCount int    `json:"signature_count"`
}

type PetitionListResponse struct {
	Petitions []Petition `json:"petitions"`
	Page      int        `json:"page"`
	PerPage   int        `json:"per_page"`
	Total     int        `json:"total"`
}

// Domain types

type Petition struct {
	ID                         string     `json:"id"`
	Action                     string     `json:"action"`
	Background                 string     `json:"background"`
	AdditionalDetails          string     `json:"additional_details,omitempty"`
	State                      string     `json:"state"`
	SignatureCount             int        `json:"signature_count"`
	OpenAt                     *time.Time `json:"open_at,omitempty"`
	ClosesAt                   *time.Time `json:"closes_at,omitempty"`
	ClosedAt                   *time.Time `json:"closed_at,omitempty"`
	RejectionCode              *string    `json:"rejection_code,omitempty"`
	RejectionDetails           *string    `json:"rejection_details,omitempty"`
	ResponseThresholdReachedAt *time.Time `json:"response_threshold_reached_at,omitempty"`
	DebateThresholdReachedAt   *time.Time `json:"debate_threshold_reached_at,omitempty"`
	GovernmentResponseAt       *time.Time `json:"government_response_at,omitempty"`
	DebateOutcomeAt            *time.Time `json:"debate_outcome_at,omitempty"`
	CreatedAt                  time.Time  `json:"created_at"`
}

type Signature struct {
	ID            string     `json:"id"`
	PetitionID    string     `json:"petition_id"`
	Name          string     `json:"name"`
	Email         string     `json:"-"` // Never expose in JSON
	Postcode      string     `json:"-"` // Never expose in JSON
	LocationCode  string     `json:"location_code"`
	State         string     `json:"state"`
	Role          string     `json:"role"`
	NotifyByEmail bool       `json:"-"`
	ValidatedAt   *time.Time `json:"validated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type GovernmentResponse struct {
	PetitionID string    `json:"petition_id"`
	Summary    string    `json:"summary"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DebateOutcome struct {
	PetitionID    string    `json:"petition_id"`
	DebatedOn     time.Time `json:"debated_on"`
	Debated       bool      `json:"debated"`
	Overview      string    `json:"overview,omitempty"`
	TranscriptURL string    `json:"transcript_url,omitempty"`
	VideoURL      string    `json:"video_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type PetitionDetail struct {
	Petition           Petition            `json:"petition"`
	GovernmentResponse *GovernmentResponse `json:"government_response,omitempty"`
	DebateOutcome      *DebateOutcome      `json:"debate_outcome,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
