// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"

	"github.com/civicworks/epetitions/cliparse"
)

// Email is a rendered outbound message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends rendered emails. Implementations must be safe for
// concurrent use: the dispatcher and the HTTP handlers both send.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// New picks the mailer implementation from config: SMTP when an address is
// configured, otherwise a logging fallback for development.
func New(cfg cliparse.Config) Mailer {
	if cfg.SMTPAddr == "" {
		return &LogMailer{}
	}
	return &SMTPMailer{
		addr:     cfg.SMTPAddr,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
	}
}

// SMTPMailer delivers mail over SMTP with optional PLAIN auth.
type SMTPMailer struct {
	addr     string
	username string
	password string
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var a smtp.Auth
	if m.username != "" {
		host := m.addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		a = smtp.PlainAuth("", m.username, m.password, host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", e.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(e.Body)

	if err := smtp.SendMail(m.addr, a, e.From, []string{e.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogMailer logs emails instead of sending them. Used in development when
// no SMTP address is configured.
type LogMailer struct{}

func (m *LogMailer) Send(_ context.Context, e Email) error {
	slog.Info("email (not sent, no SMTP configured)",
		"to", e.To,
		"subject", e.Subject,
	)
	return nil
}

// Recorder captures sent emails for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Email

	// FailWith, when set, is returned by Send without recording.
	FailWith error
}

func (r *Recorder) Send(_ context.Context, e Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.sent = append(r.sent, e)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Email, len(r.sent))
	copy(out, r.sent)
	return out
}
