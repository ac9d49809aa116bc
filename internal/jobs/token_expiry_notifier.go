// token_expiry_notifier.go implements the TokenExpiryNotifier job, which scans for API tokens
// approaching their expiry date and emails a warning to the owning user. Notification state
// is persisted in the database (expiry_notification_sent_at column) so each token is warned
// about once, even across restarts. The job is only scheduled when a mailer is configured.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/notify"
	"github.com/tenantry/tenantry/internal/telemetry"
)

const defaultWarningDays = 7

// ExpiringTokenStore is the subset of the API token repository the notifier needs.
type ExpiringTokenStore interface {
	FindExpiring(ctx context.Context, warningDays int) ([]*models.APIToken, error)
	MarkExpiryNotificationSent(ctx context.Context, id string) error
}

// TokenExpiryNotifier emails users whose API tokens are about to expire.
type TokenExpiryNotifier struct {
	tokens      ExpiringTokenStore
	mailer      notify.Mailer
	warningDays int
	now         func() time.Time
}

// NewTokenExpiryNotifier creates a notifier. warningDays <= 0 uses 7.
func NewTokenExpiryNotifier(tokens ExpiringTokenStore, mailer notify.Mailer, warningDays int) *TokenExpiryNotifier {
	if warningDays <= 0 {
		warningDays = defaultWarningDays
	}
	return &TokenExpiryNotifier{
		tokens:      tokens,
		mailer:      mailer,
		warningDays: warningDays,
		now:         time.Now,
	}
}

// Name implements Job.
func (n *TokenExpiryNotifier) Name() string {
	return "token-expiry-notifier"
}

// Run queries for expiring tokens and sends one warning per token. A failed
// send leaves the token unmarked so the next run retries it.
func (n *TokenExpiryNotifier) Run(ctx context.Context) error {
	tokens, err := n.tokens.FindExpiring(ctx, n.warningDays)
	if err != nil {
		return fmt.Errorf("failed to query expiring tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	slog.Info("token expiry notifier: tokens approaching expiry", "count", len(tokens))

	for _, tok := range tokens {
		if tok.UserEmail == nil || *tok.UserEmail == "" || tok.ExpiresAt == nil {
			continue
		}

		subject, body := n.compose(tok)
		if err := n.mailer.Send(ctx, *tok.UserEmail, subject, body); err != nil {
			slog.Warn("token expiry notifier: failed to send email",
				"token_id", tok.ID, "error", err)
			continue
		}
		telemetry.TokenExpiryNotificationsSentTotal.Inc()

		if err := n.tokens.MarkExpiryNotificationSent(ctx, tok.ID); err != nil {
			slog.Error("token expiry notifier: failed to mark notification sent",
				"token_id", tok.ID, "error", err)
		}
	}
	return nil
}

// compose builds the plain-text warning email for tok.
func (n *TokenExpiryNotifier) compose(tok *models.APIToken) (subject, body string) {
	expiresAt := *tok.ExpiresAt
	daysLeft := int(expiresAt.Sub(n.now()).Hours()/24) + 1
	if daysLeft < 0 {
		daysLeft = 0
	}

	name := "there"
	if tok.UserName != nil && *tok.UserName != "" {
		name = *tok.UserName
	}

	subject = fmt.Sprintf("Action required: API token '%s' expires in %d day(s)", tok.Name, daysLeft)
	body = strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		fmt.Sprintf("Your API token '%s' will expire on %s (%d day(s) from now).",
			tok.Name, expiresAt.UTC().Format(time.RFC1123), daysLeft),
		"",
		"To avoid interrupting scripts that use it, issue a replacement token from your",
		"account settings and update them before the expiry date.",
		"",
		"If you no longer need this token, no action is required.",
	}, "\n")
	return subject, body
}
