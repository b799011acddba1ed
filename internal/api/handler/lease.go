package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// --- Residents ---

type tenantRequest struct {
	FullName string  `json:"full_name" validate:"required,max=200"`
	Email    *string `json:"email"     validate:"omitempty,email"`
	Phone    *string `json:"phone"     validate:"omitempty,e164"`
}

// NewCreateTenantHandler returns an http.HandlerFunc for POST /api/v1/tenants.
func NewCreateTenantHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req tenantRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		now := time.Now().UTC()
		t := &models.Tenant{
			ID:        uuid.New(),
			CompanyID: cid,
			FullName:  strings.TrimSpace(req.FullName),
			Email:     req.Email,
			Phone:     req.Phone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := ls.CreateTenant(r.Context(), t); err != nil {
			writeStoreError(w, r, err, "Tenant")
			return
		}
		response.Created(w, t)
	}
}

func NewListTenantsHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		items, total, err := ls.ListTenants(r.Context(), cid, page)
		if err != nil {
			writeStoreError(w, r, err, "Tenant")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}

func NewGetTenantHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "tenantID")
		if !ok {
			return
		}
		t, err := ls.GetTenant(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Tenant")
			return
		}
		response.JSON(w, t)
	}
}

// --- Contracts ---

type contractRequest struct {
	UnitID      uuid.UUID  `json:"unit_id"      validate:"required"`
	RoomID      *uuid.UUID `json:"room_id"`
	TenantID    uuid.UUID  `json:"tenant_id"    validate:"required"`
	Reference   string     `json:"reference"    validate:"required,max=50"`
	MonthlyRent float64    `json:"monthly_rent" validate:"gt=0"`
	StartDate   string     `json:"start_date"   validate:"required,datetime=2006-01-02"`
	EndDate     string     `json:"end_date"     validate:"omitempty,datetime=2006-01-02"`
}

// NewCreateContractHandler returns an http.HandlerFunc for POST /api/v1/contracts.
// The unit, room and resident must belong to the caller's company.
func NewCreateContractHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req contractRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		start, _ := parseDate(req.StartDate)
		end, _ := parseDate(req.EndDate)
		if end != nil && end.Before(*start) {
			response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED",
				"end_date must not be before start_date", nil)
			return
		}

		now := time.Now().UTC()
		c := &models.Contract{
			ID:          uuid.New(),
			CompanyID:   cid,
			UnitID:      req.UnitID,
			RoomID:      req.RoomID,
			TenantID:    req.TenantID,
			Reference:   strings.ToUpper(strings.TrimSpace(req.Reference)),
			MonthlyRent: req.MonthlyRent,
			StartDate:   *start,
			EndDate:     end,
			Status:      models.ContractStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if end != nil && end.Before(now) {
			c.Status = models.ContractStatusEnded
		}
		if err := ls.CreateContract(r.Context(), c); err != nil {
			writeStoreError(w, r, err, "Contract")
			return
		}
		response.Created(w, c)
	}
}

func NewListContractsHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		items, total, err := ls.ListContracts(r.Context(), cid, page)
		if err != nil {
			writeStoreError(w, r, err, "Contract")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}

func NewGetContractHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "contractID")
		if !ok {
			return
		}
		c, err := ls.GetContract(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Contract")
			return
		}
		response.JSON(w, c)
	}
}

// --- Payments ---

type paymentRequest struct {
	Amount  float64 `json:"amount"   validate:"gt=0"`
	DueDate string  `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// NewCreatePaymentHandler returns an http.HandlerFunc for
// POST /api/v1/contracts/{contractID}/payments, which records an expected
// payment. It starts pending; bank reconciliation marks it paid.
func NewCreatePaymentHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		contractID, ok := uuidParam(w, r, "contractID")
		if !ok {
			return
		}
		var req paymentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if _, err := ls.GetContract(r.Context(), contractID, cid); err != nil {
			writeStoreError(w, r, err, "Contract")
			return
		}
		due, _ := parseDate(req.DueDate)

		now := time.Now().UTC()
		p := &models.Payment{
			ID:         uuid.New(),
			CompanyID:  cid,
			ContractID: contractID,
			Amount:     req.Amount,
			DueDate:    *due,
			Status:     models.PaymentStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := ls.CreatePayment(r.Context(), p); err != nil {
			writeStoreError(w, r, err, "Payment")
			return
		}
		response.Created(w, p)
	}
}

// NewListPaymentsHandler returns an http.HandlerFunc for
// GET /api/v1/payments?contract_id=&status=.
func NewListPaymentsHandler(ls store.LeaseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		filter := store.PaymentFilter{CompanyID: cid, Page: page}
		if filter.ContractID, ok = optionalUUIDQuery(w, r, "contract_id"); !ok {
			return
		}
		switch status := r.URL.Query().Get("status"); status {
		case "", models.PaymentStatusPending, models.PaymentStatusPaid, models.PaymentStatusOverdue:
			filter.Status = status
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, paid, overdue", nil)
			return
		}

		items, total, err := ls.ListPayments(r.Context(), filter)
		if err != nil {
			writeStoreError(w, r, err, "Payment")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}
