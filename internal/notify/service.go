package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
)

var (
	ErrInvalidNotification = errors.New("invalid notification")
	ErrUnknownChannel      = errors.New("unknown notification channel")
)

// Delivery statuses reported per channel.
const (
	DeliveryStored  = "stored"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Delivery is the outcome of one channel for one notification.
type Delivery struct {
	Channel  string `json:"channel"`
	Provider string `json:"provider,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Service stores notifications in the inbox and fans them out to the
// outbound channels they request.
type Service struct {
	store   store.NotificationStore
	senders map[string]models.Sender
	now     func() time.Time
}

// NewService creates a Service. Senders are keyed by their Channel(); a
// channel without a sender is reported as skipped on delivery.
func NewService(st store.NotificationStore, senders ...models.Sender) *Service {
	s := &Service{
		store:   st,
		senders: make(map[string]models.Sender, len(senders)),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, sender := range senders {
		if sender != nil {
			s.senders[sender.Channel()] = sender
		}
	}
	return s
}

// Create validates and stores n, then dispatches it to every requested
// outbound channel. Channel failures never fail the create; they are logged
// and returned in the delivery report.
func (s *Service) Create(ctx context.Context, n *models.Notification) ([]Delivery, error) {
	if err := normalize(n); err != nil {
		return nil, err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = s.now()

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("storing notification: %w", err)
	}

	deliveries := make([]Delivery, 0, len(n.Channels))
	for _, ch := range n.Channels {
		deliveries = append(deliveries, s.deliver(ctx, n, ch))
	}
	return deliveries, nil
}

func (s *Service) deliver(ctx context.Context, n *models.Notification, channel string) Delivery {
	d := Delivery{Channel: channel}
	if channel == models.ChannelInApp {
		d.Status = DeliveryStored
		return d
	}

	sender, ok := s.senders[channel]
	if !ok {
		d.Status = DeliverySkipped
		d.Error = "no sender configured"
		return d
	}
	d.Provider = sender.Provider()

	var address string
	switch channel {
	case models.ChannelEmail:
		if n.Email != nil {
			address = *n.Email
		}
	case models.ChannelSMS:
		if n.Phone != nil {
			address = *n.Phone
		}
	}
	if address == "" {
		d.Status = DeliverySkipped
		d.Error = "recipient has no " + channel + " address"
		return d
	}

	err := sender.Send(ctx, models.OutboundMessage{
		Name:    n.Recipient,
		Address: address,
		Subject: n.Title,
		Body:    n.Body,
	})
	if err != nil {
		slog.WarnContext(ctx, "notification delivery failed",
			"notification_id", n.ID,
			"company_id", n.CompanyID,
			"channel", channel,
			"provider", d.Provider,
			"error", err,
		)
		d.Status = DeliveryFailed
		d.Error = err.Error()
		return d
	}
	d.Status = DeliverySent
	return d
}

// MarkRead marks one notification as read. Reading twice keeps the first
// read timestamp.
func (s *Service) MarkRead(ctx context.Context, id, companyID uuid.UUID) (*models.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id, companyID, s.now())
}

// MarkAllRead marks every unread notification of the recipient as read and
// returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, companyID uuid.UUID, recipient string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, companyID, recipient, s.now())
}

// Purge deletes notifications read more than retention ago.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	n, err := s.store.PurgeReadNotifications(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purging notifications: %w", err)
	}
	return n, nil
}

var knownChannels = []string{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS}

// normalize trims fields, defaults the type and deduplicates channels.
// The in-app channel is always present.
func normalize(n *models.Notification) error {
	if n.CompanyID == uuid.Nil {
		return fmt.Errorf("%w: company is required", ErrInvalidNotification)
	}
	n.Recipient = strings.TrimSpace(n.Recipient)
	n.Title = strings.TrimSpace(n.Title)
	if n.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidNotification)
	}
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidNotification)
	}
	if n.Type == "" {
		n.Type = models.NotificationGeneral
	}

	channels := []string{models.ChannelInApp}
	for _, ch := range n.Channels {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if !slices.Contains(knownChannels, ch) {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if !slices.Contains(channels, ch) {
			channels = append(channels, ch)
		}
	}
	n.Channels = channels

	n.Email = trimOptional(n.Email)
	n.Phone = trimOptional(n.Phone)
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
