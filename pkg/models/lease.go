package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContractStatusActive = "active"
	ContractStatusEnded  = "ended"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusOverdue = "overdue"
)

// Tenant is a resident renting a unit or room. Not to be confused with the
// company, which is the account that owns the data.
type Tenant struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	FullName  string    `db:"full_name"  json:"full_name"`
	Email     *string   `db:"email"      json:"email,omitempty"`
	Phone     *string   `db:"phone"      json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Contract struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	CompanyID   uuid.UUID  `db:"company_id"   json:"company_id"`
	UnitID      uuid.UUID  `db:"unit_id"      json:"unit_id"`
	RoomID      *uuid.UUID `db:"room_id"      json:"room_id,omitempty"`
	TenantID    uuid.UUID  `db:"tenant_id"    json:"tenant_id"`
	Reference   string     `db:"reference"    json:"reference"`
	MonthlyRent float64    `db:"monthly_rent" json:"monthly_rent"`
	StartDate   time.Time  `db:"start_date"   json:"start_date"`
	EndDate     *time.Time `db:"end_date"     json:"end_date,omitempty"`
	Status      string     `db:"status"       json:"status"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

type Payment struct {
	ID             uuid.UUID  `db:"id"               json:"id"`
	CompanyID      uuid.UUID  `db:"company_id"       json:"company_id"`
	ContractID     uuid.UUID  `db:"contract_id"      json:"contract_id"`
	Amount         float64    `db:"amount"           json:"amount"`
	DueDate        time.Time  `db:"due_date"         json:"due_date"`
	Status         string     `db:"status"           json:"status"`
	PaidAt         *time.Time `db:"paid_at"          json:"paid_at,omitempty"`
	BankMovementID *uuid.UUID `db:"bank_movement_id" json:"bank_movement_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}

// OpenPayment is an unpaid payment together with what reconciliation and
// reminders need to know about its contract and resident.
type OpenPayment struct {
	Payment
	ContractReference string    `json:"contract_reference"`
	TenantID          uuid.UUID `json:"tenant_id"`
	TenantName        string    `json:"tenant_name"`
	TenantEmail       *string   `json:"tenant_email,omitempty"`
	TenantPhone       *string   `json:"tenant_phone,omitempty"`
}
