package sendgrid

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client is the part of the SendGrid client the sender uses.
type Client interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// Sender implements models.Sender for e-mail using SendGrid.
type Sender struct {
	client    Client
	fromName  string
	fromEmail string
	sandbox   bool
}

func NewSender(cfg config.SendGridConfig) *Sender {
	return NewSenderWithClient(sg.NewSendClient(cfg.APIKey), cfg)
}

func NewSenderWithClient(c Client, cfg config.SendGridConfig) *Sender {
	return &Sender{client: c, fromName: cfg.FromName, fromEmail: cfg.FromEmail, sandbox: cfg.Sandbox}
}

func (s *Sender) Channel() string  { return models.ChannelEmail }
func (s *Sender) Provider() string { return "sendgrid" }

func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.Name, msg.Address)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody(msg.Body))
	disabled := false
	email.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{Enable: &disabled},
	}
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		email.MailSettings = ms
	}

	resp, err := s.client.Send(email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// htmlBody renders a plain text body as escaped HTML paragraphs.
func htmlBody(plain string) string {
	var b strings.Builder
	for _, para := range strings.Split(plain, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

var _ models.Sender = (*Sender)(nil)
