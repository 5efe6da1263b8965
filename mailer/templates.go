// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mailer

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/civicworks/epetitions/models"
	"github.com/civicworks/epetitions/site"
)

var validationTmpl = template.Must(template.New("validation").Parse(
	`Hi {{.Name}},

Please confirm your email address to {{if .IsCreator}}publish your petition{{else}}add your signature to the petition{{end}}:

  {{.Action}}

Confirm by following this link:

  {{.SiteURL}}/signatures/verify?token={{.Token}}

If you did not request this, you can ignore this email.

{{.SiteTitle}}
`))

var thresholdTmpl = template.Must(template.New("threshold").Parse(
	`Hi {{.Name}},

The petition you signed has reached {{.Count}} signatures:

  {{.Action}}

{{.Consequence}}

{{.SiteTitle}}

Unsubscribe: {{.SiteURL}}/signatures/unsubscribe?token={{.Token}}
`))

var responseTmpl = template.Must(template.New("response").Parse(
	`Hi {{.Name}},

The Government has responded to the petition you signed:

  {{.Action}}

{{.Summary}}

Read the full response: {{.SiteURL}}/petitions/{{.PetitionID}}

{{.SiteTitle}}

Unsubscribe: {{.SiteURL}}/signatures/unsubscribe?token={{.Token}}
`))

var debateTmpl = template.Must(template.New("debate").Parse(
	`Hi {{.Name}},

Parliament {{if .Debated}}has debated{{else}}decided not to debate{{end}} the petition you signed:

  {{.Action}}

{{if .Overview}}{{.Overview}}

{{end}}Details: {{.SiteURL}}/petitions/{{.PetitionID}}

{{.SiteTitle}}

Unsubscribe: {{.SiteURL}}/signatures/unsubscribe?token={{.Token}}
`))

// ValidationEmail builds the confirm-your-email message sent after signing.
func ValidationEmail(s site.Site, action, name, token string, isCreator bool) Email {
	body := render(validationTmpl, map[string]interface{}{
		"Name":      name,
		"IsCreator": isCreator,
		"Action":    action,
		"SiteURL":   s.URL,
		"SiteTitle": s.Title,
		"Token":     token,
	})

	subject := "Please confirm your signature"
	if isCreator {
		subject = "Please confirm your petition"
	}

	return Email{From: s.EmailFrom, Subject: subject, Body: body}
}

// DeliveryEmail builds the notification message for an email_delivery row.
// The count is humanized ("10,000 signatures") for threshold kinds.
func DeliveryEmail(s site.Site, kind string, p models.Petition, name, unsubscribeToken, responseSummary string, debate *models.DebateOutcome) (Email, error) {
	switch kind {
	case models.DeliveryResponseThreshold:
		body := render(thresholdTmpl, map[string]interface{}{
			"Name":        name,
			"Count":       humanize.Comma(int64(s.ThresholdForResponse)),
			"Action":      p.Action,
			"Consequence": "The Government will now respond to this petition.",
			"SiteURL":     s.URL,
			"SiteTitle":   s.Title,
			"Token":       unsubscribeToken,
		})
		subject := fmt.Sprintf("%s signatures reached", humanize.Comma(int64(s.ThresholdForResponse)))
		return Email{From: s.EmailFrom, Subject: subject, Body: body}, nil

	case models.DeliveryDebateThreshold:
		body := render(thresholdTmpl, map[string]interface{}{
			"Name":        name,
			"Count":       humanize.Comma(int64(s.ThresholdForDebate)),
			"Action":      p.Action,
			"Consequence": "Parliament will now consider this petition for a debate.",
			"SiteURL":     s.URL,
			"SiteTitle":   s.Title,
			"Token":       unsubscribeToken,
		})
		subject := fmt.Sprintf("%s signatures reached", humanize.Comma(int64(s.ThresholdForDebate)))
		return Email{From: s.EmailFrom, Subject: subject, Body: body}, nil

	case models.DeliveryGovernmentResponse:
		body := render(responseTmpl, map[string]interface{}{
			"Name":       name,
			"Action":     p.Action,
			"Summary":    responseSummary,
			"PetitionID": p.ID,
			"SiteURL":    s.URL,
			"SiteTitle":  s.Title,
			"Token":      unsubscribeToken,
		})
		return Email{From: s.EmailFrom, Subject: "The Government responded to your petition", Body: body}, nil

	case models.DeliveryDebateOutcome:
		debated := debate != nil && debate.Debated
		overview := ""
		if debate != nil {
			overview = debate.Overview
		}
		body := render(debateTmpl, map[string]interface{}{
			"Name":       name,
			"Debated":    debated,
			"Action":     p.Action,
			"Overview":   overview,
			"PetitionID": p.ID,
			"SiteURL":    s.URL,
			"SiteTitle":  s.Title,
			"Token":      unsubscribeToken,
		})
		subject := "Your petition was debated in Parliament"
		if !debated {
			subject = "Parliament decided not to debate your petition"
		}
		return Email{From: s.EmailFrom, Subject: subject, Body: body}, nil
	}

	return Email{}, fmt.Errorf("unknown delivery kind: %s", kind)
}

func render(t *template.Template, data interface{}) string {
	var b strings.Builder
	// Templates are static and data is plain values; execution cannot fail.
	_ = t.Execute(&b, data)
	return b.String()
}
