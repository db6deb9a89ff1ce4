// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package mail delivers password reset links.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks addresses and rejects header injection.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return oops.Code("MAIL_INVALID_MESSAGE").With("field", "from").Wrap(err)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return oops.Code("MAIL_INVALID_MESSAGE").With("field", "to").Wrap(err)
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return oops.Code("MAIL_INVALID_MESSAGE").With("field", "subject").Errorf("subject contains a line break")
	}
	return nil
}

// Bytes renders the message in RFC 5322 form with CRLF line endings.
func (m Message) Bytes(now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// LogMailer logs messages instead of sending them. Used when no SMTP host is
// configured. It is meant for development only: the full body is logged, and
// a reset message body carries a live reset link.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg at INFO.
func (l *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "mail delivery disabled, logging message",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
