package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const JobTypeNorma43Import = "norma43_import"

// ImportJob tracks an asynchronous bank statement import. The API returns the
// job on POST /api/v1/bank-import/norma43; the client polls
// GET /api/v1/bank-import/jobs/{jobID} until status is completed or failed.
type ImportJob struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	CompanyID      uuid.UUID  `db:"company_id"      json:"company_id"`
	Type           string     `db:"type"            json:"type"`
	Status         string     `db:"status"          json:"status"`
	FileName       string     `db:"file_name"       json:"file_name"`
	MovementsTotal int        `db:"movements_total" json:"movements_total"`
	MovementsNew   int        `db:"movements_new"   json:"movements_new"`
	Duplicates     int        `db:"duplicates"      json:"duplicates"`
	Reconciled     int        `db:"reconciled"      json:"reconciled"`
	ErrorMessage   *string    `db:"error_message"   json:"error_message,omitempty"`
	StartedAt      *time.Time `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// BankMovement is one imported statement line. Amount is signed: credits are
// positive, debits negative.
type BankMovement struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	CompanyID      uuid.UUID  `db:"company_id"      json:"company_id"`
	JobID          uuid.UUID  `db:"job_id"          json:"job_id"`
	Account        string     `db:"account"         json:"account"`
	OperationDate  time.Time  `db:"operation_date"  json:"operation_date"`
	ValueDate      time.Time  `db:"value_date"      json:"value_date"`
	Amount         float64    `db:"amount"          json:"amount"`
	Currency       string     `db:"currency"        json:"currency"`
	CommonConcept  string     `db:"common_concept"  json:"common_concept"`
	OwnConcept     string     `db:"own_concept"     json:"own_concept"`
	DocumentNumber string     `db:"document_number" json:"document_number"`
	Reference1     string     `db:"reference1"      json:"reference1"`
	Reference2     string     `db:"reference2"      json:"reference2"`
	Concepts       []string   `db:"concepts"        json:"concepts"`
	Fingerprint    string     `db:"fingerprint"     json:"fingerprint"`
	PaymentID      *uuid.UUID `db:"payment_id"      json:"payment_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
}
