// Package scheduler runs the periodic maintenance jobs: flagging overdue
// payments and purging old inbox notifications.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/notify"
	"github.com/rentdesk/rentdesk/pkg/models"
	cron "github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// PaymentStore flags pending payments past their due date.
type PaymentStore interface {
	MarkOverduePayments(ctx context.Context, asOf time.Time) ([]*models.OpenPayment, error)
}

// Notifier creates notifications and purges old ones.
type Notifier interface {
	Create(ctx context.Context, n *models.Notification) ([]notify.Delivery, error)
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	payments  PaymentStore
	notifier  Notifier
	retention time.Duration
	now       func() time.Time
}

// New registers the jobs on a UTC cron. It fails if a schedule spec does not
// parse.
func New(cfg config.SchedulerConfig, retention time.Duration, payments PaymentStore, notifier Notifier) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		payments:  payments,
		notifier:  notifier,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}

	if _, err := s.cron.AddFunc(cfg.OverdueSpec, s.wrap("overdue_payments", s.RunOverduePayments)); err != nil {
		return nil, fmt.Errorf("scheduling overdue payments %q: %w", cfg.OverdueSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.PurgeSpec, s.wrap("purge_notifications", s.RunPurge)); err != nil {
		return nil, fmt.Errorf("scheduling notification purge %q: %w", cfg.PurgeSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := fn(ctx)
		if err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		slog.Info("scheduled job finished", "job", name, "affected", n, "duration_ms", time.Since(start).Milliseconds())
	}
}

// RunOverduePayments flags overdue payments and notifies each resident.
// Notification failures are logged; the payments stay overdue.
func (s *Scheduler) RunOverduePayments(ctx context.Context) (int, error) {
	overdue, err := s.payments.MarkOverduePayments(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("marking overdue payments: %w", err)
	}
	for _, p := range overdue {
		if _, err := s.notifier.Create(ctx, overdueNotification(p)); err != nil {
			slog.Warn("failed to create overdue notification", "payment_id", p.ID, "error", err)
		}
	}
	return len(overdue), nil
}

// RunPurge deletes notifications read longer ago than the retention window.
func (s *Scheduler) RunPurge(ctx context.Context) (int, error) {
	return s.notifier.Purge(ctx, s.retention)
}

func overdueNotification(p *models.OpenPayment) *models.Notification {
	channels := []string{models.ChannelInApp}
	if p.TenantEmail != nil {
		channels = append(channels, models.ChannelEmail)
	}
	return &models.Notification{
		CompanyID: p.CompanyID,
		Recipient: p.TenantID.String(),
		Type:      models.NotificationPaymentOverdue,
		Title:     "Payment overdue",
		Body: fmt.Sprintf("Hello %s, the payment of %.2f EUR for contract %s was due on %s and has not been received yet.",
			p.TenantName, p.Amount, p.ContractReference, p.DueDate.Format("2006-01-02")),
		Channels: channels,
		Email:    p.TenantEmail,
		Phone:    p.TenantPhone,
		Metadata: map[string]string{
			"payment_id":  p.ID.String(),
			"contract_id": p.ContractID.String(),
		},
	}
}
