// Package bankimport imports Norma 43 bank statements as background jobs and
// reconciles incoming transfers with open rent payments.
package bankimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/notify"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/rentdesk/rentdesk/pkg/norma43"
)

const jobStatusTTL = 30 * time.Minute

// ErrNoMovements is returned for a well-formed statement without movements.
var ErrNoMovements = errors.New("statement contains no movements")

// Store is the persistence the importer needs.
type Store interface {
	CreateJob(ctx context.Context, job *models.ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.ImportJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error
	InsertBankMovement(ctx context.Context, m *models.BankMovement) (bool, error)
	GetUnreconciledMovement(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.BankMovement, error)
	ListOpenPayments(ctx context.Context, companyID uuid.UUID) ([]*models.OpenPayment, error)
	MarkPaymentPaid(ctx context.Context, paymentID, companyID, movementID uuid.UUID, paidAt time.Time) error
}

// StatusCache mirrors job status for cheap polling.
type StatusCache interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, bool, error)
}

// Notifier creates inbox notifications.
type Notifier interface {
	Create(ctx context.Context, n *models.Notification) ([]notify.Delivery, error)
}

// Service parses statements synchronously and stores them asynchronously.
type Service struct {
	store      Store
	cache      StatusCache
	notifier   Notifier
	reconciler *Reconciler
	strict     bool

	wg sync.WaitGroup
}

// NewService creates a Service. notifier may be nil, in which case matched
// payments are not announced.
func NewService(st Store, ca StatusCache, notifier Notifier, cfg config.BankImportConfig) *Service {
	return &Service{
		store:      st,
		cache:      ca,
		notifier:   notifier,
		reconciler: NewReconciler(cfg.ReconcileWindowDays),
		strict:     cfg.Strict,
	}
}

// Import parses the statement and, if it is valid, creates a pending job and
// processes it in a background goroutine. Parse failures are returned
// directly so the caller can report the offending line.
func (s *Service) Import(ctx context.Context, companyID uuid.UUID, fileName string, r io.Reader) (*models.ImportJob, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("invalid import: company ID is required")
	}

	var opts []norma43.Option
	if !s.strict {
		opts = append(opts, norma43.Lenient())
	}
	stmt, err := norma43.Parse(r, opts...)
	if err != nil {
		return nil, err
	}
	if len(stmt.Movements()) == 0 {
		return nil, ErrNoMovements
	}
	for _, w := range stmt.Warnings {
		slog.WarnContext(ctx, "norma 43 statement warning", "company_id", companyID, "file", fileName, "warning", w)
	}

	now := time.Now().UTC()
	job := &models.ImportJob{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Type:           models.JobTypeNorma43Import,
		Status:         models.JobStatusPending,
		FileName:       fileName,
		MovementsTotal: len(stmt.Movements()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	s.wg.Add(1)
	go s.run(companyID, job.ID, stmt)

	return job, nil
}

// GetJob returns the job with its status refreshed from the cache when the
// worker has moved on since the row was read.
func (s *Service) GetJob(ctx context.Context, id, companyID uuid.UUID) (*models.ImportJob, error) {
	job, err := s.store.GetJob(ctx, id, companyID)
	if err != nil {
		return nil, err
	}
	if status, ok, err := s.cache.GetJobStatus(ctx, id); err == nil && ok && isAhead(status, job.Status) {
		job.Status = status
	}
	return job, nil
}

// Wait blocks until every running import has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// run stores the statement's movements and reconciles new credits. It
// recovers from panics and always marks the job as completed or failed.
func (s *Service) run(companyID, jobID uuid.UUID, stmt *norma43.Statement) {
	defer s.wg.Done()
	ctx := context.Background()
	log := slog.With("job_id", jobID, "company_id", companyID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in bank import", "error", r)
			s.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("starting job: %v", err))
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)

	open, err := s.store.ListOpenPayments(ctx, companyID)
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("loading open payments: %v", err))
		return
	}

	stats := store.ImportStats{}
	fp := newFingerprinter()
	for _, account := range stmt.Accounts {
		for _, mv := range account.Movements {
			stats.MovementsTotal++
			row := toBankMovement(companyID, jobID, account, mv, fp.next(mv))

			inserted, err := s.store.InsertBankMovement(ctx, row)
			if err != nil {
				s.fail(ctx, jobID, fmt.Sprintf("storing movement at line %d: %v", mv.Line, err))
				return
			}
			if inserted {
				stats.MovementsNew++
			} else {
				stats.Duplicates++
				// A duplicate left unlinked by an earlier failed run still
				// gets reconciled.
				existing, err := s.store.GetUnreconciledMovement(ctx, companyID, row.Fingerprint)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					s.fail(ctx, jobID, fmt.Sprintf("loading movement at line %d: %v", mv.Line, err))
					return
				}
				row = existing
			}

			payment, kind := s.reconciler.Match(mv, open)
			if payment == nil {
				continue
			}
			if err := s.store.MarkPaymentPaid(ctx, payment.ID, companyID, row.ID, mv.ValueDate); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					// Paid by someone else since the open list was loaded.
					open = removePayment(open, payment.ID)
					continue
				}
				s.fail(ctx, jobID, fmt.Sprintf("marking payment %s paid: %v", payment.ID, err))
				return
			}
			stats.Reconciled++
			open = removePayment(open, payment.ID)
			log.Info("payment reconciled", "payment_id", payment.ID, "movement_id", row.ID, "match", kind)
			s.announcePayment(ctx, companyID, payment, row)
		}
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, store.WithImportStats(stats)); err != nil {
		log.Error("failed to complete bank import job", "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
	log.Info("bank import completed",
		"movements", stats.MovementsTotal,
		"new", stats.MovementsNew,
		"duplicates", stats.Duplicates,
		"reconciled", stats.Reconciled,
	)
}

func (s *Service) fail(ctx context.Context, jobID uuid.UUID, msg string) {
	slog.Error("bank import failed", "job_id", jobID, "error", msg)
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg))
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

func (s *Service) announcePayment(ctx context.Context, companyID uuid.UUID, p *models.OpenPayment, m *models.BankMovement) {
	if s.notifier == nil {
		return
	}
	channels := []string{models.ChannelInApp}
	if p.TenantEmail != nil {
		channels = append(channels, models.ChannelEmail)
	}
	n := &models.Notification{
		CompanyID: companyID,
		Recipient: p.TenantID.String(),
		Type:      models.NotificationPaymentReceived,
		Title:     "Payment received",
		Body: fmt.Sprintf("We received %.2f %s for contract %s due %s. Thank you, %s.",
			p.Amount, m.Currency, p.ContractReference, p.DueDate.Format("2006-01-02"), p.TenantName),
		Channels: channels,
		Email:    p.TenantEmail,
		Phone:    p.TenantPhone,
		Metadata: map[string]string{
			"payment_id":  p.ID.String(),
			"contract_id": p.ContractID.String(),
			"movement_id": m.ID.String(),
		},
	}
	if _, err := s.notifier.Create(ctx, n); err != nil {
		slog.Warn("failed to create payment notification", "payment_id", p.ID, "error", err)
	}
}

func toBankMovement(companyID, jobID uuid.UUID, account *norma43.Account, mv norma43.Movement, fingerprint string) *models.BankMovement {
	currency := mv.Currency
	if currency == "" {
		currency = account.Currency
	}
	concepts := mv.Concepts
	if concepts == nil {
		concepts = []string{}
	}
	return &models.BankMovement{
		ID:             uuid.New(),
		CompanyID:      companyID,
		JobID:          jobID,
		Account:        account.ID(),
		OperationDate:  mv.OperationDate,
		ValueDate:      mv.ValueDate,
		Amount:         mv.Amount.Float(),
		Currency:       currency,
		CommonConcept:  mv.CommonConcept,
		OwnConcept:     mv.OwnConcept,
		DocumentNumber: mv.DocumentNumber,
		Reference1:     strings.TrimSpace(mv.Reference1),
		Reference2:     strings.TrimSpace(mv.Reference2),
		Concepts:       concepts,
		Fingerprint:    fingerprint,
		CreatedAt:      time.Now().UTC(),
	}
}

func removePayment(ps []*models.OpenPayment, id uuid.UUID) []*models.OpenPayment {
	out := ps[:0]
	for _, p := range ps {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

var statusRank = map[string]int{
	models.JobStatusPending:   0,
	models.JobStatusRunning:   1,
	models.JobStatusCompleted: 2,
	models.JobStatusFailed:    2,
}

func isAhead(cached, stored string) bool {
	c, ok := statusRank[cached]
	if !ok {
		return false
	}
	return c > statusRank[stored]
}
