// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package mail

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// DefaultDialTimeout bounds connecting to the SMTP server when ctx has no deadline.
const DefaultDialTimeout = 10 * time.Second

// SMTPConfig describes an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends mail through an SMTP relay using STARTTLS and PLAIN auth.
// Plaintext sessions are only permitted to loopback relays.
type SMTPMailer struct {
	cfg       SMTPConfig
	tlsConfig *tls.Config
	now       func() time.Time
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	return &SMTPMailer{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now:       time.Now,
	}, nil
}

// Addr returns host:port of the relay.
func (s *SMTPMailer) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Send delivers msg. The connection honours ctx cancellation.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.Addr())
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "dial").With("addr", s.Addr()).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort, the dial already succeeded
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() }) //nolint:errcheck // unblocks a cancelled session
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // handshake error takes precedence
		return oops.Code("MAIL_SEND_FAILED").With("operation", "greeting").Wrap(err)
	}
	defer func() { _ = c.Close() }() //nolint:errcheck // Quit below reports delivery errors

	if err := s.secure(c); err != nil {
		return err
	}

	steps := []struct {
		op string
		fn func() error
	}{
		{"mail", func() error { return c.Mail(msg.From) }},
		{"rcpt", func() error { return c.Rcpt(msg.To) }},
		{"data", func() error {
			w, err := c.Data()
			if err != nil {
				return err
			}
			if _, err := w.Write(msg.Bytes(s.now())); err != nil {
				return err
			}
			return w.Close()
		}},
		{"quit", c.Quit},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("operation", step.op).With("to", msg.To).Wrap(err)
		}
	}
	return nil
}

// secure upgrades to TLS when offered and authenticates when credentials are set.
func (s *SMTPMailer) secure(c *smtp.Client) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(s.tlsConfig); err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("operation", "starttls").Wrap(err)
		}
	} else if !isLoopback(s.cfg.Host) {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "starttls").
			With("host", s.cfg.Host).
			Errorf("smtp server does not offer STARTTLS")
	}

	if s.cfg.Username == "" {
		return nil
	}
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := c.Auth(auth); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "auth").Wrap(err)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
