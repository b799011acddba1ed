package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidReference = errors.New("referenced resource does not exist")

// Store is the data access interface. All database operations go through here.
// Every method that reads company data takes the company ID and never returns
// rows of another company.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultCompany(ctx context.Context) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)

	APIKeyStore
	PropertyStore
	LeaseStore
	NotificationStore
	BankStore
}

// APIKeyStore covers API key authentication and administration.
type APIKeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, companyID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, companyID uuid.UUID) error
}

// PropertyStore covers buildings, units, rooms and seeker profiles.
type PropertyStore interface {
	CreateBuilding(ctx context.Context, b *models.Building) error
	GetBuilding(ctx context.Context, id, companyID uuid.UUID) (*models.Building, error)
	ListBuildings(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Building, int, error)
	CreateUnit(ctx context.Context, u *models.Unit) error
	GetUnit(ctx context.Context, id, companyID uuid.UUID) (*models.Unit, error)
	ListUnits(ctx context.Context, companyID, buildingID uuid.UUID) ([]*models.Unit, error)
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id, companyID uuid.UUID) (*models.Room, error)
	UpdateRoom(ctx context.Context, r *models.Room) error
	ListRoomsByUnit(ctx context.Context, companyID, unitID uuid.UUID) ([]*models.Room, error)
	ListRoomListings(ctx context.Context, filter RoomFilter) ([]*models.RoomListing, error)
	CreateSeekerProfile(ctx context.Context, p *models.SeekerProfile) error
	GetSeekerProfile(ctx context.Context, id, companyID uuid.UUID) (*models.SeekerProfile, error)
	ListSeekerProfiles(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.SeekerProfile, int, error)
}

// LeaseStore covers residents, contracts and payments.
type LeaseStore interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	GetTenant(ctx context.Context, id, companyID uuid.UUID) (*models.Tenant, error)
	ListTenants(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Tenant, int, error)
	CreateContract(ctx context.Context, c *models.Contract) error
	GetContract(ctx context.Context, id, companyID uuid.UUID) (*models.Contract, error)
	ListContracts(ctx context.Context, companyID uuid.UUID, page Page) ([]*models.Contract, int, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, int, error)
	ListOpenPayments(ctx context.Context, companyID uuid.UUID) ([]*models.OpenPayment, error)
	MarkPaymentPaid(ctx context.Context, paymentID, companyID, movementID uuid.UUID, paidAt time.Time) error
	MarkOverduePayments(ctx context.Context, asOf time.Time) ([]*models.OpenPayment, error)
}

// NotificationStore covers the in-app inbox.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id, companyID uuid.UUID) (*models.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, int, error)
	CountUnreadNotifications(ctx context.Context, companyID uuid.UUID, recipient string) (int, error)
	MarkNotificationRead(ctx context.Context, id, companyID uuid.UUID, at time.Time) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, companyID uuid.UUID, recipient string, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, id, companyID uuid.UUID) error
	PurgeReadNotifications(ctx context.Context, readBefore time.Time) (int, error)
}

// BankStore covers import jobs and imported bank movements.
type BankStore interface {
	CreateJob(ctx context.Context, job *models.ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID, companyID uuid.UUID) (*models.ImportJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	InsertBankMovement(ctx context.Context, m *models.BankMovement) (bool, error)
	GetUnreconciledMovement(ctx context.Context, companyID uuid.UUID, fingerprint string) (*models.BankMovement, error)
	ListBankMovements(ctx context.Context, filter MovementFilter) ([]*models.BankMovement, int, error)
}

// Page is a 1-based page request. Zero values are normalized to page 1 of 20.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() (limit, offset int) {
	limit = p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

type RoomFilter struct {
	CompanyID      uuid.UUID
	City           string
	AvailableBy    *time.Time
	MaxPrice       float64
	OnlyUnoccupied bool
}

type PaymentFilter struct {
	CompanyID  uuid.UUID
	ContractID *uuid.UUID
	Status     string
	Page
}

type NotificationFilter struct {
	CompanyID  uuid.UUID
	Recipient  string
	Type       string
	UnreadOnly bool
	Page
}

type MovementFilter struct {
	CompanyID    uuid.UUID
	Account      string
	From         time.Time
	To           time.Time
	Unreconciled bool
	JobID        *uuid.UUID
	Page
}

// JobUpdate holds the optional fields of a job status change.
type JobUpdate struct {
	ErrorMessage *string
	Stats        *ImportStats
}

// ImportStats are the counters recorded on a completed import job.
type ImportStats struct {
	MovementsTotal int
	MovementsNew   int
	Duplicates     int
	Reconciled     int
}

type JobUpdateOption func(*JobUpdate)

// ApplyJobUpdateOptions folds opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithImportStats(s ImportStats) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Stats = &s
	}
}
