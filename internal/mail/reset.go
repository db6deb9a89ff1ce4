// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package mail

import (
	"context"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// ResetSubject is the subject line of reset mails.
const ResetSubject = "Reset password"

// ResetNotifier mails reset links to identities.
type ResetNotifier struct {
	mailer  Mailer
	from    string
	baseURL string
}

// NewResetNotifier creates a ResetNotifier. Links are built as
// <publicURL><prefix>/users/reset_password/<token>/.
func NewResetNotifier(mailer Mailer, from, publicURL, prefix string) (*ResetNotifier, error) {
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("url", publicURL).Errorf("public url must be absolute")
	}
	return &ResetNotifier{
		mailer:  mailer,
		from:    from,
		baseURL: strings.TrimRight(publicURL, "/") + "/" + strings.Trim(prefix, "/"),
	}, nil
}

// ResetURL returns the link that redeems token.
func (n *ResetNotifier) ResetURL(token string) string {
	return strings.TrimRight(n.baseURL, "/") + "/users/reset_password/" + url.PathEscape(token) + "/"
}

// Notify sends the reset link for token to identity.
func (n *ResetNotifier) Notify(ctx context.Context, identity *auth.Identity, token string) error {
	if identity == nil {
		return oops.Code("MAIL_INVALID_MESSAGE").Errorf("identity is required")
	}
	msg := Message{
		From:    n.from,
		To:      identity.Email,
		Subject: ResetSubject,
		Body:    n.ResetURL(token),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return oops.With("identity_id", identity.ID.String()).Wrap(err)
	}
	return nil
}
