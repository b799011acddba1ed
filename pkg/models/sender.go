package models

import "context"

// Sender is the interface every outbound notification channel implements.
// Never call SendGrid or Twilio directly; always inject a Sender.
type Sender interface {
	// Send delivers one message. Implementations must not retry.
	Send(ctx context.Context, msg OutboundMessage) error
	// Channel returns the channel served, ChannelEmail or ChannelSMS.
	Channel() string
	// Provider returns the backend identifier (e.g., "sendgrid", "log").
	Provider() string
}

// OutboundMessage is a rendered notification addressed to one recipient.
// Address is an e-mail address or an E.164 phone number depending on the
// channel.
type OutboundMessage struct {
	Name    string
	Address string
	Subject string
	Body    string
}
