package twilio

import (
	"context"
	"fmt"

	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/pkg/models"
	twiliogo "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxBodyRunes keeps an SMS within Twilio's concatenated message limit.
const maxBodyRunes = 1600

// MessageCreator is the part of the Twilio API client the sender uses.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender implements models.Sender for SMS using Twilio.
type Sender struct {
	api       MessageCreator
	fromPhone string
}

func NewSender(cfg config.TwilioConfig) *Sender {
	client := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewSenderWithAPI(client.Api, cfg.FromPhone)
}

func NewSenderWithAPI(api MessageCreator, fromPhone string) *Sender {
	return &Sender{api: api, fromPhone: fromPhone}
}

func (s *Sender) Channel() string  { return models.ChannelSMS }
func (s *Sender) Provider() string { return "twilio" }

// Send texts "subject :: body", truncated to the SMS limit.
func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + " :: " + msg.Body
	}
	if r := []rune(body); len(r) > maxBodyRunes {
		body = string(r[:maxBodyRunes])
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.Address)
	params.SetFrom(s.fromPhone)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}

var _ models.Sender = (*Sender)(nil)
