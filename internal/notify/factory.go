package notify

import (
	"fmt"

	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/notify/sendgrid"
	"github.com/rentdesk/rentdesk/internal/notify/twilio"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// NewEmailSender constructs the e-mail backend selected by config.
// Called once at server startup.
func NewEmailSender(cfg config.NotifyConfig) (models.Sender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		return sendgrid.NewSender(cfg.SendGrid), nil
	case "log", "":
		return NewLogSender(models.ChannelEmail), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q: must be one of sendgrid, log", cfg.EmailProvider)
	}
}

// NewSMSSender constructs the SMS backend selected by config.
func NewSMSSender(cfg config.NotifyConfig) (models.Sender, error) {
	switch cfg.SMSProvider {
	case "twilio":
		return twilio.NewSender(cfg.Twilio), nil
	case "log", "":
		return NewLogSender(models.ChannelSMS), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q: must be one of twilio, log", cfg.SMSProvider)
	}
}
