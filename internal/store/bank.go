package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// --- Import jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.ImportJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, company_id, type, status, file_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.CompanyID, job.Type, job.Status, job.FileName, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return classifyWriteError("create job", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.ImportJob, error) {
	var j models.ImportJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, type, status, file_name, movements_total, movements_new, duplicates, reconciled,
		   error_message, started_at, completed_at, created_at, updated_at
		 FROM import_jobs WHERE id = $1 AND company_id = $2`, id, companyID,
	).Scan(&j.ID, &j.CompanyID, &j.Type, &j.Status, &j.FileName, &j.MovementsTotal, &j.MovementsNew,
		&j.Duplicates, &j.Reconciled, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := ApplyJobUpdateOptions(opts...)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM import_jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	if !slices.Contains(validTransitions[currentStatus], status) {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE import_jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.Stats != nil {
		query += fmt.Sprintf(", movements_total = $%d, movements_new = $%d, duplicates = $%d, reconciled = $%d",
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, params.Stats.MovementsTotal, params.Stats.MovementsNew,
			params.Stats.Duplicates, params.Stats.Reconciled)
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// --- Bank movements ---

const movementColumns = `id, company_id, job_id, account, operation_date, value_date, amount, currency,
	common_concept, own_concept, document_number, reference1, reference2, concepts, fingerprint,
	payment_id, created_at`

// InsertBankMovement stores a movement unless the company already has one with
// the same fingerprint. It reports whether a row was written.
func (s *PostgresStore) InsertBankMovement(ctx context.Context, m *models.BankMovement) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO bank_movements (`+movementColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (company_id, fingerprint) DO NOTHING`,
		m.ID, m.CompanyID, m.JobID, m.Account, m.OperationDate, m.ValueDate, m.Amount, m.Currency,
		m.CommonConcept, m.OwnConcept, m.DocumentNumber, m.Reference1, m.Reference2,
		nonNilStrings(m.Concepts), m.Fingerprint, m.PaymentID, m.CreatedAt)
	if err != nil {
		return false, classifyWriteError("insert bank movement", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetUnreconciledMovement returns the company's movement with the given
// fingerprint if it is not linked to a payment yet, or ErrNotFound.
func (s *PostgresStore) GetUnreconciledMovement(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.BankMovement, error) {
	var m models.BankMovement
	err := s.pool.QueryRow(ctx,
		`SELECT `+movementColumns+` FROM bank_movements
		 WHERE company_id = $1 AND fingerprint = $2 AND payment_id IS NULL`, companyID, fingerprint,
	).Scan(&m.ID, &m.CompanyID, &m.JobID, &m.Account, &m.OperationDate, &m.ValueDate,
		&m.Amount, &m.Currency, &m.CommonConcept, &m.OwnConcept, &m.DocumentNumber, &m.Reference1,
		&m.Reference2, &m.Concepts, &m.Fingerprint, &m.PaymentID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unreconciled movement: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListBankMovements(ctx context.Context, filter MovementFilter) ([]*models.BankMovement, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.Account != "" {
		conditions = append(conditions, fmt.Sprintf("account = $%d", argIdx))
		args = append(args, filter.Account)
		argIdx++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("value_date >= $%d::date", argIdx))
		args = append(args, filter.From)
		argIdx++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("value_date <= $%d::date", argIdx))
		args = append(args, filter.To)
		argIdx++
	}
	if filter.JobID != nil {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argIdx))
		args = append(args, *filter.JobID)
		argIdx++
	}
	if filter.Unreconciled {
		conditions = append(conditions, "payment_id IS NULL")
	}

	where := strings.Join(conditions, " AND ")
	total, err := s.queryCount(ctx, "bank_movements", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count bank movements: %w", err)
	}

	limit, offset := filter.normalize()
	query := fmt.Sprintf(`SELECT `+movementColumns+` FROM bank_movements WHERE %s
		 ORDER BY value_date DESC, created_at DESC, id LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bank movements: %w", err)
	}
	defer rows.Close()

	var out []*models.BankMovement
	for rows.Next() {
		var m models.BankMovement
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.JobID, &m.Account, &m.OperationDate, &m.ValueDate,
			&m.Amount, &m.Currency, &m.CommonConcept, &m.OwnConcept, &m.DocumentNumber, &m.Reference1,
			&m.Reference2, &m.Concepts, &m.Fingerprint, &m.PaymentID, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan bank movement: %w", err)
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}
