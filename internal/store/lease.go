package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// --- Tenants (residents) ---

const tenantColumns = `id, company_id, full_name, email, phone, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.CompanyID, &t.FullName, &t.Email, &t.Phone, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.CompanyID, t.FullName, t.Email, t.Phone, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return classifyWriteError("create tenant", err)
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id, companyID uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTenants(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Tenant, int, error) {
	total, err := s.queryCount(ctx, "tenants", "company_id = $1", []any{companyID})
	if err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	limit, offset := page.normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE company_id = $1
		 ORDER BY full_name LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// --- Contracts ---

const contractColumns = `id, company_id, unit_id, room_id, tenant_id, reference, monthly_rent, start_date, end_date,
	status, created_at, updated_at`

func scanContract(row pgx.Row) (*models.Contract, error) {
	var c models.Contract
	err := row.Scan(&c.ID, &c.CompanyID, &c.UnitID, &c.RoomID, &c.TenantID, &c.Reference, &c.MonthlyRent,
		&c.StartDate, &c.EndDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

// CreateContract inserts a contract. The unit, the resident and the optional
// room must all belong to the contract's company, and the room to the unit.
func (s *PostgresStore) CreateContract(ctx context.Context, c *models.Contract) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO contracts (`+contractColumns+`)
		 SELECT $1::uuid, $2, u.id, $4::uuid, t.id, $6::text, $7::numeric, $8::date, $9::date,
		   $10::text, $11::timestamptz, $12::timestamptz
		 FROM units u
		 JOIN tenants t ON t.id = $5 AND t.company_id = $2
		 WHERE u.id = $3 AND u.company_id = $2
		   AND ($4::uuid IS NULL OR EXISTS (
		     SELECT 1 FROM rooms r WHERE r.id = $4::uuid AND r.unit_id = u.id AND r.company_id = $2))`,
		c.ID, c.CompanyID, c.UnitID, c.RoomID, c.TenantID, c.Reference, c.MonthlyRent, c.StartDate,
		c.EndDate, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return classifyWriteError("create contract", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidReference
	}
	return nil
}

func (s *PostgresStore) GetContract(ctx context.Context, id, companyID uuid.UUID) (*models.Contract, error) {
	c, err := scanContract(s.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListContracts(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Contract, int, error) {
	total, err := s.queryCount(ctx, "contracts", "company_id = $1", []any{companyID})
	if err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}

	limit, offset := page.normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE company_id = $1
		 ORDER BY start_date DESC, reference LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// --- Payments ---

const paymentColumns = `p.id, p.company_id, p.contract_id, p.amount, p.due_date, p.status, p.paid_at,
	p.bank_movement_id, p.created_at, p.updated_at`

func paymentDest(p *models.Payment) []any {
	return []any{&p.ID, &p.CompanyID, &p.ContractID, &p.Amount, &p.DueDate, &p.Status, &p.PaidAt,
		&p.BankMovementID, &p.CreatedAt, &p.UpdatedAt}
}

// CreatePayment inserts an expected payment for a contract of the same company.
func (s *PostgresStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO payments (id, company_id, contract_id, amount, due_date, status, created_at, updated_at)
		 SELECT $1::uuid, $2, c.id, $4::numeric, $5::date, $6::text, $7::timestamptz, $8::timestamptz
		 FROM contracts c WHERE c.id = $3 AND c.company_id = $2`,
		p.ID, p.CompanyID, p.ContractID, p.Amount, p.DueDate, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return classifyWriteError("create payment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidReference
	}
	return nil
}

func (s *PostgresStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, int, error) {
	conditions := []string{"p.company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.ContractID != nil {
		conditions = append(conditions, fmt.Sprintf("p.contract_id = $%d", argIdx))
		args = append(args, *filter.ContractID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")
	total, err := s.queryCount(ctx, "payments p", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	limit, offset := filter.normalize()
	query := fmt.Sprintf(`SELECT `+paymentColumns+` FROM payments p WHERE %s
		 ORDER BY p.due_date DESC, p.id LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(paymentDest(&p)...); err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

const openPaymentQuery = `SELECT ` + paymentColumns + `, c.reference, t.id, t.full_name, t.email, t.phone
	FROM payments p
	JOIN contracts c ON c.id = p.contract_id
	JOIN tenants t ON t.id = c.tenant_id`

func scanOpenPayments(rows pgx.Rows) ([]*models.OpenPayment, error) {
	defer rows.Close()

	var out []*models.OpenPayment
	for rows.Next() {
		var op models.OpenPayment
		dest := append(paymentDest(&op.Payment), &op.ContractReference, &op.TenantID, &op.TenantName,
			&op.TenantEmail, &op.TenantPhone)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan open payment: %w", err)
		}
		out = append(out, &op)
	}
	return out, rows.Err()
}

// ListOpenPayments returns the pending and overdue payments of a company,
// oldest due date first.
func (s *PostgresStore) ListOpenPayments(ctx context.Context, companyID uuid.UUID) ([]*models.OpenPayment, error) {
	rows, err := s.pool.Query(ctx,
		openPaymentQuery+` WHERE p.company_id = $1 AND p.status IN ('pending', 'overdue')
		 ORDER BY p.due_date, p.id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list open payments: %w", err)
	}
	return scanOpenPayments(rows)
}

// MarkPaymentPaid settles an open payment with a bank movement. Both sides of
// the link are written in one transaction.
func (s *PostgresStore) MarkPaymentPaid(ctx context.Context, paymentID, companyID, movementID uuid.UUID, paidAt time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE payments SET status = 'paid', paid_at = $3, bank_movement_id = $4, updated_at = NOW()
			 WHERE id = $1 AND company_id = $2 AND status IN ('pending', 'overdue')`,
			paymentID, companyID, paidAt, movementID)
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		tag, err = tx.Exec(ctx,
			`UPDATE bank_movements SET payment_id = $2 WHERE id = $1 AND company_id = $3 AND payment_id IS NULL`,
			movementID, paymentID, companyID)
		if err != nil {
			return fmt.Errorf("link bank movement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkOverduePayments flips every pending payment due before asOf to overdue
// across all companies and returns the payments it changed.
func (s *PostgresStore) MarkOverduePayments(ctx context.Context, asOf time.Time) ([]*models.OpenPayment, error) {
	rows, err := s.pool.Query(ctx,
		`WITH flipped AS (
		   UPDATE payments SET status = 'overdue', updated_at = NOW()
		   WHERE status = 'pending' AND due_date < $1::date
		   RETURNING id
		 )
		 `+openPaymentQuery+` JOIN flipped f ON f.id = p.id
		 ORDER BY p.company_id, p.due_date, p.id`, asOf)
	if err != nil {
		return nil, fmt.Errorf("mark overdue payments: %w", err)
	}
	out, err := scanOpenPayments(rows)
	if err != nil {
		return nil, err
	}
	// The outer SELECT reads the snapshot taken before the CTE's update.
	for _, op := range out {
		op.Status = models.PaymentStatusOverdue
	}
	return out, nil
}
