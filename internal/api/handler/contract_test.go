package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api"
	"github.com/rentdesk/rentdesk/internal/api/handler"
	mw "github.com/rentdesk/rentdesk/internal/api/middleware"
	"github.com/rentdesk/rentdesk/internal/bankimport"
	"github.com/rentdesk/rentdesk/internal/cache"
	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/notify"
	"github.com/rentdesk/rentdesk/internal/notify/mock"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testCompanyID  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	otherCompanyID = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testRawKey     = "rd_contract0000000000000000000000000000000"
	otherRawKey    = "rd_other00000000000000000000000000000000"
)

func keyHash(raw string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	return string(h)
}

// ─── in-memory store ─────────────────────────────────────────────────────────

type memStore struct {
	mu            sync.Mutex
	keys          []*models.APIKey
	buildings     map[uuid.UUID]*models.Building
	units         map[uuid.UUID]*models.Unit
	rooms         map[uuid.UUID]*models.Room
	seekers       map[uuid.UUID]*models.SeekerProfile
	tenants       map[uuid.UUID]*models.Tenant
	contracts     map[uuid.UUID]*models.Contract
	payments      map[uuid.UUID]*models.Payment
	notifications map[uuid.UUID]*models.Notification
	jobs          map[uuid.UUID]*models.ImportJob
	movements     []*models.BankMovement
}

func newMemStore() *memStore {
	return &memStore{
		keys: []*models.APIKey{
			{ID: uuid.New(), CompanyID: testCompanyID, Name: "contract", KeyHash: keyHash(testRawKey),
				KeyPrefix: testRawKey[:8], Scopes: []string{"read", "write", "admin"}},
			{ID: uuid.New(), CompanyID: otherCompanyID, Name: "other", KeyHash: keyHash(otherRawKey),
				KeyPrefix: otherRawKey[:8], Scopes: []string{"read", "write"}},
		},
		buildings:     make(map[uuid.UUID]*models.Building),
		units:         make(map[uuid.UUID]*models.Unit),
		rooms:         make(map[uuid.UUID]*models.Room),
		seekers:       make(map[uuid.UUID]*models.SeekerProfile),
		tenants:       make(map[uuid.UUID]*models.Tenant),
		contracts:     make(map[uuid.UUID]*models.Contract),
		payments:      make(map[uuid.UUID]*models.Payment),
		notifications: make(map[uuid.UUID]*models.Notification),
		jobs:          make(map[uuid.UUID]*models.ImportJob),
	}
}

// owned returns the value for id when it exists and belongs to companyID.
func owned[T any](m map[uuid.UUID]*T, id, companyID uuid.UUID, company func(*T) uuid.UUID) (*T, error) {
	v, ok := m[id]
	if !ok || company(v) != companyID {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) Ping(_ context.Context) error { return nil }

func (s *memStore) GetDefaultCompany(_ context.Context) (*models.Company, error) {
	return &models.Company{ID: testCompanyID, Name: "Residencial Sol"}, nil
}

func (s *memStore) ListCompanies(_ context.Context) ([]*models.Company, error) {
	return []*models.Company{{ID: testCompanyID}, {ID: otherCompanyID}}, nil
}

// API keys

func (s *memStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *memStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Name == key.Name && k.CompanyID == key.CompanyID && k.DeletedAt == nil {
			return store.ErrDuplicateKey
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *memStore) ListAPIKeys(_ context.Context, companyID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.CompanyID == companyID && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memStore) RevokeAPIKey(_ context.Context, id, companyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.CompanyID == companyID && k.DeletedAt == nil {
			now := time.Now()
			k.DeletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

// Properties

func (s *memStore) CreateBuilding(_ context.Context, b *models.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings[b.ID] = b
	return nil
}

func (s *memStore) GetBuilding(_ context.Context, id, companyID uuid.UUID) (*models.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.buildings, id, companyID, func(b *models.Building) uuid.UUID { return b.CompanyID })
}

func (s *memStore) ListBuildings(_ context.Context, companyID uuid.UUID, _ store.Page) ([]*models.Building, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Building
	for _, b := range s.buildings {
		if b.CompanyID == companyID {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (s *memStore) CreateUnit(_ context.Context, u *models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buildings[u.BuildingID]; !ok || b.CompanyID != u.CompanyID {
		return store.ErrInvalidReference
	}
	s.units[u.ID] = u
	return nil
}

func (s *memStore) GetUnit(_ context.Context, id, companyID uuid.UUID) (*models.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.units, id, companyID, func(u *models.Unit) uuid.UUID { return u.CompanyID })
}

func (s *memStore) ListUnits(_ context.Context, companyID, buildingID uuid.UUID) ([]*models.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Unit
	for _, u := range s.units {
		if u.CompanyID == companyID && u.BuildingID == buildingID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) CreateRoom(_ context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[r.UnitID]; !ok || u.CompanyID != r.CompanyID {
		return store.ErrInvalidReference
	}
	s.rooms[r.ID] = r
	return nil
}

func (s *memStore) GetRoom(_ context.Context, id, companyID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.rooms, id, companyID, func(r *models.Room) uuid.UUID { return r.CompanyID })
}

func (s *memStore) UpdateRoom(_ context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[r.ID]; !ok || existing.CompanyID != r.CompanyID {
		return store.ErrNotFound
	}
	cp := *r
	s.rooms[r.ID] = &cp
	return nil
}

func (s *memStore) ListRoomsByUnit(_ context.Context, companyID, unitID uuid.UUID) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Room
	for _, r := range s.rooms {
		if r.CompanyID == companyID && r.UnitID == unitID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) ListRoomListings(_ context.Context, f store.RoomFilter) ([]*models.RoomListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.RoomListing
	for _, r := range s.rooms {
		if r.CompanyID != f.CompanyID {
			continue
		}
		if f.OnlyUnoccupied && r.Occupants != 0 {
			continue
		}
		if f.MaxPrice > 0 && r.MonthlyPrice > f.MaxPrice {
			continue
		}
		b := s.buildings[s.units[r.UnitID].BuildingID]
		if f.City != "" && !strings.EqualFold(b.City, f.City) {
			continue
		}
		out = append(out, &models.RoomListing{Room: *r, City: b.City, Latitude: b.Latitude, Longitude: b.Longitude})
	}
	return out, nil
}

func (s *memStore) CreateSeekerProfile(_ context.Context, p *models.SeekerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekers[p.ID] = p
	return nil
}

func (s *memStore) GetSeekerProfile(_ context.Context, id, companyID uuid.UUID) (*models.SeekerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.seekers, id, companyID, func(p *models.SeekerProfile) uuid.UUID { return p.CompanyID })
}

func (s *memStore) ListSeekerProfiles(_ context.Context, companyID uuid.UUID, _ store.Page) ([]*models.SeekerProfile, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SeekerProfile
	for _, p := range s.seekers {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

// Leases

func (s *memStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return nil
}

func (s *memStore) GetTenant(_ context.Context, id, companyID uuid.UUID) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.tenants, id, companyID, func(t *models.Tenant) uuid.UUID { return t.CompanyID })
}

func (s *memStore) ListTenants(_ context.Context, companyID uuid.UUID, _ store.Page) ([]*models.Tenant, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Tenant
	for _, t := range s.tenants {
		if t.CompanyID == companyID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (s *memStore) CreateContract(_ context.Context, c *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[c.UnitID]; !ok || u.CompanyID != c.CompanyID {
		return store.ErrInvalidReference
	}
	if t, ok := s.tenants[c.TenantID]; !ok || t.CompanyID != c.CompanyID {
		return store.ErrInvalidReference
	}
	for _, existing := range s.contracts {
		if existing.CompanyID == c.CompanyID && existing.Reference == c.Reference {
			return store.ErrDuplicateKey
		}
	}
	s.contracts[c.ID] = c
	return nil
}

func (s *memStore) GetContract(_ context.Context, id, companyID uuid.UUID) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.contracts, id, companyID, func(c *models.Contract) uuid.UUID { return c.CompanyID })
}

func (s *memStore) ListContracts(_ context.Context, companyID uuid.UUID, _ store.Page) ([]*models.Contract, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Contract
	for _, c := range s.contracts {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (s *memStore) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contracts[p.ContractID]; !ok || c.CompanyID != p.CompanyID {
		return store.ErrInvalidReference
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *memStore) ListPayments(_ context.Context, f store.PaymentFilter) ([]*models.Payment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Payment
	for _, p := range s.payments {
		if p.CompanyID != f.CompanyID {
			continue
		}
		if f.ContractID != nil && p.ContractID != *f.ContractID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *memStore) ListOpenPayments(_ context.Context, companyID uuid.UUID) ([]*models.OpenPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OpenPayment
	for _, p := range s.payments {
		if p.CompanyID != companyID || p.Status == models.PaymentStatusPaid {
			continue
		}
		c := s.contracts[p.ContractID]
		t := s.tenants[c.TenantID]
		out = append(out, &models.OpenPayment{
			Payment:           *p,
			ContractReference: c.Reference,
			TenantID:          t.ID,
			TenantName:        t.FullName,
			TenantEmail:       t.Email,
			TenantPhone:       t.Phone,
		})
	}
	return out, nil
}

func (s *memStore) MarkPaymentPaid(_ context.Context, paymentID, companyID, movementID uuid.UUID, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.CompanyID != companyID || p.Status == models.PaymentStatusPaid {
		return store.ErrNotFound
	}
	p.Status = models.PaymentStatusPaid
	p.PaidAt = &paidAt
	p.BankMovementID = &movementID
	for _, m := range s.movements {
		if m.ID == movementID {
			m.PaymentID = &paymentID
		}
	}
	return nil
}

func (s *memStore) MarkOverduePayments(_ context.Context, _ time.Time) ([]*models.OpenPayment, error) {
	return nil, nil
}

// Notifications

func (s *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *memStore) GetNotification(_ context.Context, id, companyID uuid.UUID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.notifications, id, companyID, func(n *models.Notification) uuid.UUID { return n.CompanyID })
}

func (s *memStore) matchNotifications(f store.NotificationFilter) []*models.Notification {
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.CompanyID != f.CompanyID {
			continue
		}
		if f.Recipient != "" && n.Recipient != f.Recipient {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.UnreadOnly && n.ReadAt != nil {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out
}

func (s *memStore) ListNotifications(_ context.Context, f store.NotificationFilter) ([]*models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.matchNotifications(f)
	return out, len(out), nil
}

func (s *memStore) CountUnreadNotifications(_ context.Context, companyID uuid.UUID, recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matchNotifications(store.NotificationFilter{CompanyID: companyID, Recipient: recipient, UnreadOnly: true})), nil
}

func (s *memStore) MarkNotificationRead(_ context.Context, id, companyID uuid.UUID, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) MarkAllNotificationsRead(_ context.Context, companyID uuid.UUID, recipient string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.CompanyID == companyID && n.Recipient == recipient && n.ReadAt == nil {
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func (s *memStore) DeleteNotification(_ context.Context, id, companyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.CompanyID != companyID {
		return store.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *memStore) PurgeReadNotifications(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Bank import

func (s *memStore) CreateJob(_ context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetJob(_ context.Context, id, companyID uuid.UUID) (*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return owned(s.jobs, id, companyID, func(j *models.ImportJob) uuid.UUID { return j.CompanyID })
}

func (s *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = status
	u := store.ApplyJobUpdateOptions(opts...)
	j.ErrorMessage = u.ErrorMessage
	if u.Stats != nil {
		j.MovementsTotal = u.Stats.MovementsTotal
		j.MovementsNew = u.Stats.MovementsNew
		j.Duplicates = u.Stats.Duplicates
		j.Reconciled = u.Stats.Reconciled
	}
	return nil
}

func (s *memStore) InsertBankMovement(_ context.Context, m *models.BankMovement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.movements {
		if existing.CompanyID == m.CompanyID && existing.Fingerprint == m.Fingerprint {
			return false, nil
		}
	}
	s.movements = append(s.movements, m)
	return true, nil
}

func (s *memStore) GetUnreconciledMovement(_ context.Context, companyID uuid.UUID, fingerprint string) (*models.BankMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movements {
		if m.CompanyID == companyID && m.Fingerprint == fingerprint && m.PaymentID == nil {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) ListBankMovements(_ context.Context, f store.MovementFilter) ([]*models.BankMovement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BankMovement
	for _, m := range s.movements {
		if m.CompanyID != f.CompanyID {
			continue
		}
		if f.Unreconciled && m.PaymentID != nil {
			continue
		}
		if f.JobID != nil && m.JobID != *f.JobID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, len(out), nil
}

var _ store.Store = (*memStore)(nil)

// ─── in-memory cache ─────────────────────────────────────────────────────────

type memCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]byte), counters: make(map[string]int64)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	n := 0
	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			delete(c.values, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }

func (c *memCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error {
	return c.Set(ctx, cache.JobStatusKey(jobID), []byte(status), ttl)
}

func (c *memCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, bool, error) {
	v, ok, err := c.Get(ctx, cache.JobStatusKey(jobID))
	return string(v), ok, err
}

func (c *memCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*memCache)(nil)

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server  *httptest.Server
	store   *memStore
	cache   *memCache
	email   *mock.MockSender
	imports *bankimport.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ms := newMemStore()
	mc := newMemCache()
	email := mock.NewMockSender(models.ChannelEmail)
	notifications := notify.NewService(ms, email)
	imports := bankimport.NewService(ms, mc, notifications, config.BankImportConfig{
		MaxBytes:            1 << 20,
		ReconcileWindowDays: 5,
	})

	deps := api.Dependencies{
		Auth:      mw.NewAuth(ms),
		RateLimit: mw.NewRateLimit(mc, 1000),

		HealthHandler: handler.NewHealthHandler(ms, mc),

		ProrationHandler:     handler.NewProrationHandler(),
		UnitProrationHandler: handler.NewUnitProrationHandler(ms),

		MatchingHandler:        handler.NewMatchingHandler(ms),
		ProfileMatchingHandler: handler.NewProfileMatchingHandler(ms, mc),

		ImportNorma43Handler: handler.NewNorma43ImportHandler(imports, 1<<20),
		GetImportJobHandler:  handler.NewGetImportJobHandler(imports),
		ListMovementsHandler: handler.NewListMovementsHandler(ms),

		CreateNotification:   handler.NewCreateNotificationHandler(notifications),
		ListNotifications:    handler.NewListNotificationsHandler(ms),
		UnreadNotifications:  handler.NewUnreadCountHandler(ms),
		GetNotification:      handler.NewGetNotificationHandler(ms),
		MarkNotificationRead: handler.NewMarkNotificationReadHandler(notifications),
		MarkAllRead:          handler.NewMarkAllNotificationsReadHandler(notifications),
		DeleteNotification:   handler.NewDeleteNotificationHandler(ms),

		CreateBuilding:   handler.NewCreateBuildingHandler(ms),
		ListBuildings:    handler.NewListBuildingsHandler(ms),
		GetBuilding:      handler.NewGetBuildingHandler(ms),
		CreateUnit:       handler.NewCreateUnitHandler(ms),
		ListUnits:        handler.NewListUnitsHandler(ms),
		GetUnit:          handler.NewGetUnitHandler(ms),
		CreateRoom:       handler.NewCreateRoomHandler(ms, mc),
		ListUnitRooms:    handler.NewListUnitRoomsHandler(ms),
		GetRoom:          handler.NewGetRoomHandler(ms),
		UpdateRoom:       handler.NewUpdateRoomHandler(ms, mc),
		ListRoomListings: handler.NewListRoomListingsHandler(ms),
		CreateSeeker:     handler.NewCreateSeekerHandler(ms),
		ListSeekers:      handler.NewListSeekersHandler(ms),
		GetSeeker:        handler.NewGetSeekerHandler(ms),

		CreateTenant:   handler.NewCreateTenantHandler(ms),
		ListTenants:    handler.NewListTenantsHandler(ms),
		GetTenant:      handler.NewGetTenantHandler(ms),
		CreateContract: handler.NewCreateContractHandler(ms),
		ListContracts:  handler.NewListContractsHandler(ms),
		GetContract:    handler.NewGetContractHandler(ms),
		CreatePayment:  handler.NewCreatePaymentHandler(ms),
		ListPayments:   handler.NewListPaymentsHandler(ms),

		CreateKeyHandler: handler.NewCreateKeyHandler(ms),
		ListKeysHandler:  handler.NewListKeysHandler(ms),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(ms),
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)
	t.Cleanup(imports.Wait)

	return &testServer{server: srv, store: ms, cache: mc, email: email, imports: imports}
}

func (ts *testServer) requestAs(t *testing.T, key, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.requestAs(t, testRawKey, method, path, body)
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func dataOf(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	return parseBody(t, resp)["data"].(map[string]any)
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return parseBody(t, resp)["error"].(map[string]any)["code"].(string)
}

// createID posts body and returns the id of the created resource.
func (ts *testServer) createID(t *testing.T, path string, body any) string {
	t.Helper()
	resp := ts.do(t, "POST", path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return dataOf(t, resp)["id"].(string)
}

// seedUnit creates a building in Valencia and a unit inside it.
func (ts *testServer) seedUnit(t *testing.T) string {
	t.Helper()
	buildingID := ts.createID(t, "/api/v1/buildings", map[string]any{
		"name": "Edificio Turia", "address": "Calle Colón 10", "city": "Valencia",
		"latitude": 39.4699, "longitude": -0.3763,
	})
	return ts.createID(t, "/api/v1/buildings/"+buildingID+"/units", map[string]any{
		"label": "3B", "area_m2": 95.0,
	})
}

func postRaw(t *testing.T, ts *testServer, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", ts.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTRACT TESTS
// ═══════════════════════════════════════════════════════════════════════════════

// ─── GET /api/v1/health ──────────────────────────────────────────────────────

func TestHealth_200_AllOK(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.requestAs(t, "", "GET", "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, "ok", data["status"])
}

func TestProtected_401_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.requestAs(t, "", "GET", "/api/v1/buildings", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, resp))
}

// ─── /api/v1/room-rental/proration ──────────────────────────────────────────

func TestProration_200_EqualSplitAddsUp(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/room-rental/proration", map[string]any{
		"total":  100.0,
		"method": "equal",
		"rooms": []map[string]any{
			{"id": "r1", "occupants": 1, "area_m2": 12},
			{"id": "r2", "occupants": 1, "area_m2": 15},
			{"id": "r3", "occupants": 2, "area_m2": 20},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, "equal", data["applied_method"])
	shares := data["shares"].([]any)
	require.Len(t, shares, 3)
	var cents int
	for _, s := range shares {
		amount := s.(map[string]any)["amount"].(float64)
		assert.InDelta(t, 33.33, amount, 0.011)
		cents += int(amount*100 + 0.5)
	}
	assert.Equal(t, 10000, cents)
}

func TestProration_FallsBackWhenDimensionIsZero(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/room-rental/proration", map[string]any{
		"total":  90.0,
		"method": "by_surface",
		"rooms": []map[string]any{
			{"id": "r1", "occupants": 1},
			{"id": "r2", "occupants": 2},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, "by_surface", data["requested_method"])
	assert.NotEqual(t, "by_surface", data["applied_method"])
}

func TestProration_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
		code string
	}{
		{"missing total", map[string]any{"rooms": []map[string]any{{"id": "r1"}}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"total too large", map[string]any{"total": 1e20, "rooms": []map[string]any{{"id": "r1"}, {"id": "r2"}}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"no rooms", map[string]any{"total": 10.0, "rooms": []map[string]any{}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"negative area", map[string]any{"total": 10.0, "rooms": []map[string]any{{"id": "r1", "area_m2": -3}}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"unknown method", map[string]any{"total": 10.0, "method": "by_age", "rooms": []map[string]any{{"id": "r1"}}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"unknown field", map[string]any{"total": 10.0, "rooms": []map[string]any{{"id": "r1"}}, "currency": "EUR"}, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, "POST", "/api/v1/room-rental/proration", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestUnitProration_SplitsStoredRooms(t *testing.T) {
	ts := newTestServer(t)
	unitID := ts.seedUnit(t)
	ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{"name": "A", "area_m2": 10, "occupants": 1, "monthly_price": 400})
	ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{"name": "B", "area_m2": 30, "occupants": 1, "monthly_price": 600})

	resp := ts.do(t, "GET", "/api/v1/room-rental/proration?unit_id="+unitID+"&total=100&method=by_surface", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, resp)
	shares := data["shares"].([]any)
	require.Len(t, shares, 2)
	assert.Equal(t, 25.0, shares[0].(map[string]any)["amount"])
	assert.Equal(t, 75.0, shares[1].(map[string]any)["amount"])
}

func TestUnitProration_422_TotalTooLarge(t *testing.T) {
	ts := newTestServer(t)
	unitID := ts.seedUnit(t)
	ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{"name": "A", "area_m2": 10, "occupants": 1, "monthly_price": 400})

	resp := ts.do(t, "GET", "/api/v1/room-rental/proration?unit_id="+unitID+"&total=1e20", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, resp))
}

func TestUnitProration_404_OtherCompanyUnit(t *testing.T) {
	ts := newTestServer(t)
	unitID := ts.seedUnit(t)

	resp := ts.requestAs(t, otherRawKey, "GET", "/api/v1/room-rental/proration?unit_id="+unitID+"&total=100", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── /api/v1/coliving/matching ──────────────────────────────────────────────

func TestMatching_RanksSuppliedRooms(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/coliving/matching", map[string]any{
		"seeker": map[string]any{"budget_min": 300, "budget_max": 600, "city": "Valencia"},
		"rooms": []map[string]any{
			{"room_id": "pricey", "monthly_price": 1400, "city": "Madrid"},
			{"room_id": "fit", "monthly_price": 450, "city": "Valencia"},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, resp)
	assert.Equal(t, float64(2), data["evaluated"])
	results := data["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "fit", results[0].(map[string]any)["room_id"])
}

func TestMatching_422_InvertedBudget(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/coliving/matching", map[string]any{
		"seeker": map[string]any{"budget_min": 900, "budget_max": 300},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, resp))
}

func TestProfileMatching_CachedUntilRoomChanges(t *testing.T) {
	ts := newTestServer(t)
	unitID := ts.seedUnit(t)
	roomID := ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{
		"name": "Interior", "area_m2": 11, "monthly_price": 420, "amenities": []string{"wifi", "desk"},
	})
	ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{
		"name": "Taken", "area_m2": 14, "occupants": 1, "monthly_price": 480,
	})
	seekerID := ts.createID(t, "/api/v1/seekers", map[string]any{
		"full_name": "Lucía Gómez", "budget_min": 350, "budget_max": 500, "city": "Valencia",
		"desired_amenities": []string{"wifi"},
	})
	path := "/api/v1/coliving/matching?profile_id=" + seekerID + "&limit=5"

	first := ts.do(t, "GET", path, nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "MISS", first.Header.Get("X-Cache"))
	data := dataOf(t, first)
	assert.Equal(t, float64(1), data["evaluated"], "occupied rooms are not ranked")
	assert.Equal(t, roomID, data["results"].([]any)[0].(map[string]any)["room_id"])

	second := ts.do(t, "GET", path, nil)
	assert.Equal(t, "HIT", second.Header.Get("X-Cache"))

	patch := ts.do(t, "PATCH", "/api/v1/rooms/"+roomID, map[string]any{"monthly_price": 460})
	require.Equal(t, http.StatusOK, patch.StatusCode)

	third := ts.do(t, "GET", path, nil)
	assert.Equal(t, "MISS", third.Header.Get("X-Cache"))
}

func TestProfileMatching_400_InvalidProfileID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/coliving/matching?profile_id=nope", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ─── /api/v1/bank-import ────────────────────────────────────────────────────

func dc(cents int64) (string, int64) {
	if cents < 0 {
		return "1", -cents
	}
	return "2", cents
}

func statement() []byte {
	header := func(balance int64) string {
		k, v := dc(balance)
		return fmt.Sprintf("11%4s%4s%10s%6s%6s%s%014d%3s%1s%-26s%3s",
			"2100", "0418", "0200051332", "260901", "260930", k, v, "978", "3", "RESIDENCIAL SOL SL", "")
	}
	movement := func(op, val string, cents int64, ref1, ref2 string) string {
		k, v := dc(cents)
		return fmt.Sprintf("22%4s%4s%6s%6s%2s%3s%s%014d%10s%-12s%-16s",
			"", "0418", op, val, "02", "099", k, v, "0000000001", ref1, ref2)
	}
	totals := func(debits int, debitTotal int64, credits int, creditTotal int64, final int64) string {
		k, v := dc(final)
		return fmt.Sprintf("33%4s%4s%10s%05d%014d%05d%014d%s%014d%3s%4s",
			"2100", "0418", "0200051332", debits, debitTotal, credits, creditTotal, k, v, "978", "")
	}
	end := fmt.Sprintf("88%s%06d%54s", strings.Repeat("9", 18), 4, "")

	return []byte(strings.Join([]string{
		header(100000),
		movement("260905", "260905", 55000, "CTR-2026-014", "ALQUILER SEPT"),
		movement("260910", "260911", -12050, "", ""),
		totals(1, 12050, 1, 55000, 142950),
		end,
	}, "\r\n") + "\r\n")
}

// seedLease creates a resident with an email, a contract referenced
// CTR-2026-014 and a pending 550.00 payment.
func (ts *testServer) seedLease(t *testing.T) (tenantID, contractID, paymentID string) {
	t.Helper()
	unitID := ts.seedUnit(t)
	tenantID = ts.createID(t, "/api/v1/tenants", map[string]any{
		"full_name": "Ana Martínez", "email": "ana@example.com", "phone": "+34600111222",
	})
	contractID = ts.createID(t, "/api/v1/contracts", map[string]any{
		"unit_id": unitID, "tenant_id": tenantID, "reference": "ctr-2026-014",
		"monthly_rent": 550, "start_date": "2026-09-01",
	})
	paymentID = ts.createID(t, "/api/v1/contracts/"+contractID+"/payments", map[string]any{
		"amount": 550, "due_date": "2026-09-05",
	})
	return tenantID, contractID, paymentID
}

func TestImport_202_ReconcilesAndNotifies(t *testing.T) {
	ts := newTestServer(t)
	tenantID, _, paymentID := ts.seedLease(t)

	resp := postRaw(t, ts, "/api/v1/bank-import/norma43?file_name=sept.n43", "text/plain", statement())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := dataOf(t, resp)
	assert.Equal(t, "pending", job["status"])
	assert.Equal(t, "sept.n43", job["file_name"])

	ts.imports.Wait()

	poll := ts.do(t, "GET", "/api/v1/bank-import/jobs/"+job["id"].(string), nil)
	require.Equal(t, http.StatusOK, poll.StatusCode)
	done := dataOf(t, poll)
	assert.Equal(t, "completed", done["status"])
	assert.Equal(t, float64(2), done["movements_new"])
	assert.Equal(t, float64(1), done["reconciled"])

	paid := ts.do(t, "GET", "/api/v1/payments?status=paid", nil)
	body := parseBody(t, paid)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, paymentID, items[0].(map[string]any)["id"])

	unreconciled := ts.do(t, "GET", "/api/v1/bank-movements?unreconciled=true", nil)
	assert.Equal(t, float64(1), parseBody(t, unreconciled)["meta"].(map[string]any)["total"])

	inbox := ts.do(t, "GET", "/api/v1/notifications?recipient="+tenantID+"&type=payment_received", nil)
	assert.Equal(t, float64(1), parseBody(t, inbox)["meta"].(map[string]any)["total"])
	sent := ts.email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].Address)
}

func TestImport_ReimportCountsDuplicates(t *testing.T) {
	ts := newTestServer(t)

	first := postRaw(t, ts, "/api/v1/bank-import/norma43", "text/plain", statement())
	require.Equal(t, http.StatusAccepted, first.StatusCode)
	ts.imports.Wait()

	second := postRaw(t, ts, "/api/v1/bank-import/norma43", "text/plain", statement())
	require.Equal(t, http.StatusAccepted, second.StatusCode)
	jobID := dataOf(t, second)["id"].(string)
	ts.imports.Wait()

	data := dataOf(t, ts.do(t, "GET", "/api/v1/bank-import/jobs/"+jobID, nil))
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(0), data["movements_new"])
	assert.Equal(t, float64(2), data["duplicates"])
}

func TestImport_400_InvalidFile(t *testing.T) {
	ts := newTestServer(t)

	resp := postRaw(t, ts, "/api/v1/bank-import/norma43", "text/plain", []byte("this is not a bank statement\r\n"))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_FILE", errorCode(t, resp))
}

func TestImport_413_TooLarge(t *testing.T) {
	ts := newTestServer(t)

	resp := postRaw(t, ts, "/api/v1/bank-import/norma43", "text/plain", bytes.Repeat([]byte("x"), (1<<20)+512))

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestImportJob_404_OtherCompany(t *testing.T) {
	ts := newTestServer(t)
	resp := postRaw(t, ts, "/api/v1/bank-import/norma43", "text/plain", statement())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := dataOf(t, resp)["id"].(string)
	ts.imports.Wait()

	other := ts.requestAs(t, otherRawKey, "GET", "/api/v1/bank-import/jobs/"+jobID, nil)

	assert.Equal(t, http.StatusNotFound, other.StatusCode)
}

// ─── /api/v1/notifications ──────────────────────────────────────────────────

func TestNotifications_Lifecycle(t *testing.T) {
	ts := newTestServer(t)

	created := ts.do(t, "POST", "/api/v1/notifications", map[string]any{
		"recipient": "resident-7",
		"title":     "Corte de agua",
		"body":      "El jueves de 9 a 12.",
		"channels":  []string{"email", "sms"},
		"email":     "resident7@example.com",
	})
	require.Equal(t, http.StatusCreated, created.StatusCode)
	data := dataOf(t, created)
	id := data["notification"].(map[string]any)["id"].(string)
	deliveries := data["deliveries"].([]any)
	require.Len(t, deliveries, 3)
	statuses := map[string]string{}
	for _, d := range deliveries {
		dm := d.(map[string]any)
		statuses[dm["channel"].(string)] = dm["status"].(string)
	}
	assert.Equal(t, map[string]string{"in_app": "stored", "email": "sent", "sms": "skipped"}, statuses)

	unread := dataOf(t, ts.do(t, "GET", "/api/v1/notifications/unread-count?recipient=resident-7", nil))
	assert.Equal(t, float64(1), unread["unread"])

	read := ts.do(t, "POST", "/api/v1/notifications/"+id+"/read", nil)
	require.Equal(t, http.StatusOK, read.StatusCode)
	assert.NotNil(t, dataOf(t, read)["read_at"])

	unread = dataOf(t, ts.do(t, "GET", "/api/v1/notifications/unread-count?recipient=resident-7", nil))
	assert.Equal(t, float64(0), unread["unread"])

	del := ts.do(t, "DELETE", "/api/v1/notifications/"+id, nil)
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	gone := ts.do(t, "GET", "/api/v1/notifications/"+id, nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	ts := newTestServer(t)
	for _, title := range []string{"Uno", "Dos"} {
		resp := ts.do(t, "POST", "/api/v1/notifications", map[string]any{"recipient": "r1", "title": title})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := ts.do(t, "POST", "/api/v1/notifications/read-all", map[string]any{"recipient": "r1"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), dataOf(t, resp)["updated"])
	list := ts.do(t, "GET", "/api/v1/notifications?recipient=r1&unread=true", nil)
	assert.Equal(t, float64(0), parseBody(t, list)["meta"].(map[string]any)["total"])
}

func TestNotifications_422_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"recipient": "r1"}},
		{"missing recipient", map[string]any{"title": "Hola"}},
		{"unknown channel", map[string]any{"recipient": "r1", "title": "Hola", "channels": []string{"fax"}}},
		{"bad email", map[string]any{"recipient": "r1", "title": "Hola", "email": "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, "POST", "/api/v1/notifications", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", errorCode(t, resp))
		})
	}
}

func TestNotifications_IsolatedPerCompany(t *testing.T) {
	ts := newTestServer(t)
	created := ts.do(t, "POST", "/api/v1/notifications", map[string]any{"recipient": "r1", "title": "Privada"})
	require.Equal(t, http.StatusCreated, created.StatusCode)
	id := dataOf(t, created)["notification"].(map[string]any)["id"].(string)

	resp := ts.requestAs(t, otherRawKey, "GET", "/api/v1/notifications/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	del := ts.requestAs(t, otherRawKey, "DELETE", "/api/v1/notifications/"+id, nil)
	assert.Equal(t, http.StatusNotFound, del.StatusCode)
}

// ─── property records ───────────────────────────────────────────────────────

func TestBuildings_CreateGetAndIsolation(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createID(t, "/api/v1/buildings", map[string]any{"name": "Edificio Sol", "city": "Sevilla"})

	own := ts.do(t, "GET", "/api/v1/buildings/"+id, nil)
	require.Equal(t, http.StatusOK, own.StatusCode)
	assert.Equal(t, "Sevilla", dataOf(t, own)["city"])

	other := ts.requestAs(t, otherRawKey, "GET", "/api/v1/buildings/"+id, nil)
	assert.Equal(t, http.StatusNotFound, other.StatusCode)

	list := ts.requestAs(t, otherRawKey, "GET", "/api/v1/buildings", nil)
	assert.Equal(t, float64(0), parseBody(t, list)["meta"].(map[string]any)["total"])
}

func TestBuildings_422_UnpairedCoordinates(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/buildings", map[string]any{"name": "X", "city": "Bilbao", "latitude": 43.26})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUnits_422_UnknownBuilding(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/buildings/"+uuid.NewString()+"/units", map[string]any{"label": "1A"})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRooms_PatchAndListings(t *testing.T) {
	ts := newTestServer(t)
	unitID := ts.seedUnit(t)
	roomID := ts.createID(t, "/api/v1/units/"+unitID+"/rooms", map[string]any{
		"name": "Exterior", "area_m2": 14, "monthly_price": 520, "available_from": "2026-11-01",
	})

	patch := ts.do(t, "PATCH", "/api/v1/rooms/"+roomID, map[string]any{"monthly_price": 495, "pets_allowed": true})
	require.Equal(t, http.StatusOK, patch.StatusCode)
	room := dataOf(t, patch)
	assert.Equal(t, 495.0, room["monthly_price"])
	assert.Equal(t, true, room["pets_allowed"])
	assert.Equal(t, "Exterior", room["name"])

	cheap := ts.do(t, "GET", "/api/v1/rooms?city=valencia&max_price=500", nil)
	require.Equal(t, http.StatusOK, cheap.StatusCode)
	assert.Len(t, parseBody(t, cheap)["data"].([]any), 1)

	none := ts.do(t, "GET", "/api/v1/rooms?max_price=400", nil)
	assert.Len(t, parseBody(t, none)["data"].([]any), 0)
}

func TestSeekers_422_BudgetOrder(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/seekers", map[string]any{"full_name": "Pau", "budget_min": 700, "budget_max": 400})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// ─── leases ─────────────────────────────────────────────────────────────────

func TestContracts_Validation(t *testing.T) {
	ts := newTestServer(t)
	_, contractID, _ := ts.seedLease(t)
	contract := dataOf(t, ts.do(t, "GET", "/api/v1/contracts/"+contractID, nil))
	assert.Equal(t, "CTR-2026-014", contract["reference"])
	assert.Equal(t, "active", contract["status"])

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"duplicate reference", map[string]any{
			"unit_id": contract["unit_id"], "tenant_id": contract["tenant_id"], "reference": "CTR-2026-014",
			"monthly_rent": 600, "start_date": "2026-10-01",
		}, http.StatusConflict},
		{"unknown resident", map[string]any{
			"unit_id": contract["unit_id"], "tenant_id": uuid.NewString(), "reference": "CTR-2026-099",
			"monthly_rent": 600, "start_date": "2026-10-01",
		}, http.StatusUnprocessableEntity},
		{"end before start", map[string]any{
			"unit_id": contract["unit_id"], "tenant_id": contract["tenant_id"], "reference": "CTR-2026-100",
			"monthly_rent": 600, "start_date": "2026-10-01", "end_date": "2026-09-01",
		}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{
			"unit_id": contract["unit_id"], "tenant_id": contract["tenant_id"], "reference": "CTR-2026-101",
			"monthly_rent": 600, "start_date": "01/10/2026",
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, "POST", "/api/v1/contracts", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPayments_CreateAndFilter(t *testing.T) {
	ts := newTestServer(t)
	_, contractID, _ := ts.seedLease(t)

	missing := ts.do(t, "POST", "/api/v1/contracts/"+uuid.NewString()+"/payments", map[string]any{
		"amount": 550, "due_date": "2026-10-05",
	})
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	pending := ts.do(t, "GET", "/api/v1/payments?contract_id="+contractID+"&status=pending", nil)
	require.Equal(t, http.StatusOK, pending.StatusCode)
	assert.Equal(t, float64(1), parseBody(t, pending)["meta"].(map[string]any)["total"])

	bad := ts.do(t, "GET", "/api/v1/payments?status=late", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

// ─── /api/v1/admin/keys ─────────────────────────────────────────────────────

func TestKeys_CreateUseRevoke(t *testing.T) {
	ts := newTestServer(t)

	created := ts.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "frontend", "scopes": []string{"read"}})
	require.Equal(t, http.StatusCreated, created.StatusCode)
	data := dataOf(t, created)
	raw := data["key"].(string)
	assert.True(t, strings.HasPrefix(raw, "rd_"))
	assert.Len(t, raw, 43)
	assert.Equal(t, raw[:8], data["key_prefix"])

	use := ts.requestAs(t, raw, "GET", "/api/v1/buildings", nil)
	assert.Equal(t, http.StatusOK, use.StatusCode)

	forbidden := ts.requestAs(t, raw, "GET", "/api/v1/admin/keys", nil)
	assert.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	list := ts.do(t, "GET", "/api/v1/admin/keys", nil)
	for _, k := range parseBody(t, list)["data"].([]any) {
		km := k.(map[string]any)
		assert.NotContains(t, km, "key_hash")
		assert.NotContains(t, km, "key")
	}

	revoke := ts.do(t, "DELETE", "/api/v1/admin/keys/"+data["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, revoke.StatusCode)

	after := ts.requestAs(t, raw, "GET", "/api/v1/buildings", nil)
	assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
}

func TestKeys_422_UnknownScope(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "x", "scopes": []string{"root"}})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestKeys_403_WithoutAdminScope(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.requestAs(t, otherRawKey, "POST", "/api/v1/admin/keys", map[string]any{"name": "x"})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
