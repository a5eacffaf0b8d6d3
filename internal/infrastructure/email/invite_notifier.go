package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
)

//go:embed templates/*.html
var templateFS embed.FS

// EmailConfig holds email service configuration
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	BaseURL        string
	SendsPerSecond float64
	SendBurst      int
}

// InviteNotifier emails freshly created invite codes through SendGrid. Without an API key it
// only logs the hand-off, which is what local and test deployments want.
type InviteNotifier struct {
	config   *EmailConfig
	logger   *logrus.Logger
	client   *sendgrid.Client
	limiter  *rate.Limiter
	template *template.Template
}

// InviteEmailData holds data for the invite template
type InviteEmailData struct {
	Code         string
	PropertyName string
	UnitID       string
	ExpiresAt    string
	RedeemURL    string
}

func NewInviteNotifier(config *EmailConfig, logger *logrus.Logger) (*InviteNotifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/invite.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse invite template: %w", err)
	}
	perSecond := config.SendsPerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := config.SendBurst
	if burst <= 0 {
		burst = 1
	}
	n := &InviteNotifier{
		config:   config,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		template: tmpl,
	}
	if config.SendGridAPIKey != "" {
		n.client = sendgrid.NewSendClient(config.SendGridAPIKey)
	}
	return n, nil
}

// Render produces the HTML body for n.
func (e *InviteNotifier) Render(n *invite.Notification) (string, error) {
	data := InviteEmailData{
		Code:         n.Code,
		PropertyName: n.PropertyName,
		UnitID:       n.UnitID,
		ExpiresAt:    n.ExpiresAt.UTC().Format(time.RFC1123),
		RedeemURL:    fmt.Sprintf("%s/invites/%s", e.config.BaseURL, url.PathEscape(n.Code)),
	}
	var buf bytes.Buffer
	if err := e.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute invite template: %w", err)
	}
	return buf.String(), nil
}

func (e *InviteNotifier) NotifyInviteCreated(ctx context.Context, n *invite.Notification) error {
	if e.client == nil || n.RecipientEmail == "" {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"code":        n.Code,
				"property_id": n.PropertyID,
				"unit_id":     n.UnitID,
				"expires_at":  n.ExpiresAt,
			}).Info("invite code ready for delivery")
		}
		return nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("invite email throttled: %w", err)
	}
	body, err := e.Render(n)
	if err != nil {
		return err
	}

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	recipient := mail.NewEmail("", n.RecipientEmail)
	subject := fmt.Sprintf("Your invite to %s", n.PropertyName)
	message := mail.NewSingleEmail(from, subject, recipient, "", body)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{"to": n.RecipientEmail, "code": n.Code}).WithError(err).Error("Failed to send invite email")
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected invite email with status %d", response.StatusCode)
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"to":          n.RecipientEmail,
			"code":        n.Code,
			"status_code": response.StatusCode,
		}).Info("Invite email sent")
	}
	return nil
}
