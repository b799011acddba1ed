package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/notify/mock"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotificationStore struct {
	mu         sync.Mutex
	created    []*models.Notification
	createErr  error
	purgeDate  time.Time
	purgeCount int
}

func (s *mockNotificationStore) CreateNotification(_ context.Context, n *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, n)
	return nil
}

func (s *mockNotificationStore) GetNotification(_ context.Context, _, _ uuid.UUID) (*models.Notification, error) {
	return nil, store.ErrNotFound
}

func (s *mockNotificationStore) ListNotifications(_ context.Context, _ store.NotificationFilter) ([]*models.Notification, int, error) {
	return nil, 0, nil
}

func (s *mockNotificationStore) CountUnreadNotifications(_ context.Context, _ uuid.UUID, _ string) (int, error) {
	return 0, nil
}

func (s *mockNotificationStore) MarkNotificationRead(_ context.Context, id, companyID uuid.UUID, at time.Time) (*models.Notification, error) {
	return &models.Notification{ID: id, CompanyID: companyID, ReadAt: &at}, nil
}

func (s *mockNotificationStore) MarkAllNotificationsRead(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (int, error) {
	return 3, nil
}

func (s *mockNotificationStore) DeleteNotification(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

func (s *mockNotificationStore) PurgeReadNotifications(_ context.Context, readBefore time.Time) (int, error) {
	s.purgeDate = readBefore
	return s.purgeCount, nil
}

func strPtr(s string) *string { return &s }

func newNotification(channels ...string) *models.Notification {
	return &models.Notification{
		CompanyID: uuid.New(),
		Recipient: "tenant-42",
		Title:     "Rent received",
		Body:      "We received your payment of 450.00 EUR.",
		Channels:  channels,
	}
}

// --- tests ---

func TestCreate_InAppOnly(t *testing.T) {
	st := &mockNotificationStore{}
	svc := NewService(st)

	n := newNotification()
	deliveries, err := svc.Create(context.Background(), n)
	require.NoError(t, err)

	require.Len(t, st.created, 1)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, models.NotificationGeneral, n.Type)
	assert.Equal(t, []string{models.ChannelInApp}, n.Channels)
	assert.False(t, n.CreatedAt.IsZero())

	require.Len(t, deliveries, 1)
	assert.Equal(t, DeliveryStored, deliveries[0].Status)
}

func TestCreate_DispatchesEmailAndSMS(t *testing.T) {
	st := &mockNotificationStore{}
	email := mock.NewMockSender(models.ChannelEmail)
	sms := mock.NewMockSender(models.ChannelSMS)
	svc := NewService(st, email, sms)

	n := newNotification("email", "SMS", "email")
	n.Email = strPtr(" ana@example.com ")
	n.Phone = strPtr("+34600111222")

	deliveries, err := svc.Create(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, []string{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS}, n.Channels)
	require.Len(t, deliveries, 3)
	assert.Equal(t, DeliverySent, deliveries[1].Status)
	assert.Equal(t, "mock", deliveries[1].Provider)
	assert.Equal(t, DeliverySent, deliveries[2].Status)

	sent := email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].Address)
	assert.Equal(t, "Rent received", sent[0].Subject)
	require.Len(t, sms.Sent(), 1)
	assert.Equal(t, "+34600111222", sms.Sent()[0].Address)
}

func TestCreate_ChannelFailureDoesNotFailCreate(t *testing.T) {
	st := &mockNotificationStore{}
	email := mock.NewFailingSender(models.ChannelEmail, errors.New("sendgrid: status 503"))
	svc := NewService(st, email)

	n := newNotification(models.ChannelEmail)
	n.Email = strPtr("ana@example.com")

	deliveries, err := svc.Create(context.Background(), n)
	require.NoError(t, err)
	require.Len(t, st.created, 1)

	require.Len(t, deliveries, 2)
	assert.Equal(t, DeliveryFailed, deliveries[1].Status)
	assert.Contains(t, deliveries[1].Error, "503")
}

func TestCreate_SkipsChannelWithoutAddressOrSender(t *testing.T) {
	st := &mockNotificationStore{}
	email := mock.NewMockSender(models.ChannelEmail)
	svc := NewService(st, email)

	n := newNotification(models.ChannelEmail, models.ChannelSMS)
	n.Email = strPtr("  ")

	deliveries, err := svc.Create(context.Background(), n)
	require.NoError(t, err)

	require.Len(t, deliveries, 3)
	assert.Equal(t, DeliverySkipped, deliveries[1].Status)
	assert.Contains(t, deliveries[1].Error, "no email address")
	assert.Equal(t, DeliverySkipped, deliveries[2].Status)
	assert.Equal(t, "no sender configured", deliveries[2].Error)
	assert.Empty(t, email.Sent())
	assert.Nil(t, n.Email)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *models.Notification)
		want   error
	}{
		{"missing company", func(n *models.Notification) { n.CompanyID = uuid.Nil }, ErrInvalidNotification},
		{"missing recipient", func(n *models.Notification) { n.Recipient = " " }, ErrInvalidNotification},
		{"missing title", func(n *models.Notification) { n.Title = "" }, ErrInvalidNotification},
		{"unknown channel", func(n *models.Notification) { n.Channels = []string{"fax"} }, ErrUnknownChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockNotificationStore{}
			svc := NewService(st)
			n := newNotification()
			tt.mutate(n)

			_, err := svc.Create(context.Background(), n)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, st.created)
		})
	}
}

func TestCreate_StoreError(t *testing.T) {
	st := &mockNotificationStore{createErr: errors.New("connection refused")}
	email := mock.NewMockSender(models.ChannelEmail)
	svc := NewService(st, email)

	n := newNotification(models.ChannelEmail)
	n.Email = strPtr("ana@example.com")

	_, err := svc.Create(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing notification")
	assert.Empty(t, email.Sent())
}

func TestPurge(t *testing.T) {
	st := &mockNotificationStore{purgeCount: 7}
	svc := NewService(st)
	fixed := time.Date(2025, 6, 30, 3, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.Purge(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, fixed.AddDate(0, 0, -90), st.purgeDate)

	_, err = svc.Purge(context.Background(), 0)
	assert.Error(t, err)
}

func TestMarkRead(t *testing.T) {
	svc := NewService(&mockNotificationStore{})
	id, companyID := uuid.New(), uuid.New()

	n, err := svc.MarkRead(context.Background(), id, companyID)
	require.NoError(t, err)
	assert.True(t, n.IsRead())

	count, err := svc.MarkAllRead(context.Background(), companyID, "tenant-42")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
