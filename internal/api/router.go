package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/rentdesk/rentdesk/internal/api/middleware"
	"github.com/rentdesk/rentdesk/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	// CORS is optional; nil disables cross-origin headers.
	CORS func(http.Handler) http.Handler

	HealthHandler http.HandlerFunc

	// Room rental
	ProrationHandler     http.HandlerFunc
	UnitProrationHandler http.HandlerFunc

	// Coliving
	MatchingHandler        http.HandlerFunc
	ProfileMatchingHandler http.HandlerFunc

	// Bank import
	ImportNorma43Handler http.HandlerFunc
	GetImportJobHandler  http.HandlerFunc
	ListMovementsHandler http.HandlerFunc

	// Notifications
	CreateNotification   http.HandlerFunc
	ListNotifications    http.HandlerFunc
	UnreadNotifications  http.HandlerFunc
	GetNotification      http.HandlerFunc
	MarkNotificationRead http.HandlerFunc
	MarkAllRead          http.HandlerFunc
	DeleteNotification   http.HandlerFunc

	// Properties
	CreateBuilding   http.HandlerFunc
	ListBuildings    http.HandlerFunc
	GetBuilding      http.HandlerFunc
	CreateUnit       http.HandlerFunc
	ListUnits        http.HandlerFunc
	GetUnit          http.HandlerFunc
	CreateRoom       http.HandlerFunc
	ListUnitRooms    http.HandlerFunc
	GetRoom          http.HandlerFunc
	UpdateRoom       http.HandlerFunc
	ListRoomListings http.HandlerFunc
	CreateSeeker     http.HandlerFunc
	ListSeekers      http.HandlerFunc
	GetSeeker        http.HandlerFunc

	// Leases
	CreateTenant   http.HandlerFunc
	ListTenants    http.HandlerFunc
	GetTenant      http.HandlerFunc
	CreateContract http.HandlerFunc
	ListContracts  http.HandlerFunc
	GetContract    http.HandlerFunc
	CreatePayment  http.HandlerFunc
	ListPayments   http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.CORS != nil {
		r.Use(deps.CORS)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Calculations never write, so a read key is enough even for POST.
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeRead))

			r.Post("/api/v1/room-rental/proration", orNotImplemented(deps.ProrationHandler))
			r.Get("/api/v1/room-rental/proration", orNotImplemented(deps.UnitProrationHandler))

			r.Post("/api/v1/coliving/matching", orNotImplemented(deps.MatchingHandler))
			r.Get("/api/v1/coliving/matching", orNotImplemented(deps.ProfileMatchingHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireMethodScope)

			r.Post("/api/v1/bank-import/norma43", orNotImplemented(deps.ImportNorma43Handler))
			r.Get("/api/v1/bank-import/jobs/{jobID}", orNotImplemented(deps.GetImportJobHandler))
			r.Get("/api/v1/bank-movements", orNotImplemented(deps.ListMovementsHandler))

			r.Post("/api/v1/notifications", orNotImplemented(deps.CreateNotification))
			r.Get("/api/v1/notifications", orNotImplemented(deps.ListNotifications))
			r.Get("/api/v1/notifications/unread-count", orNotImplemented(deps.UnreadNotifications))
			r.Post("/api/v1/notifications/read-all", orNotImplemented(deps.MarkAllRead))
			r.Get("/api/v1/notifications/{notificationID}", orNotImplemented(deps.GetNotification))
			r.Post("/api/v1/notifications/{notificationID}/read", orNotImplemented(deps.MarkNotificationRead))
			r.Delete("/api/v1/notifications/{notificationID}", orNotImplemented(deps.DeleteNotification))

			r.Post("/api/v1/buildings", orNotImplemented(deps.CreateBuilding))
			r.Get("/api/v1/buildings", orNotImplemented(deps.ListBuildings))
			r.Get("/api/v1/buildings/{buildingID}", orNotImplemented(deps.GetBuilding))
			r.Post("/api/v1/buildings/{buildingID}/units", orNotImplemented(deps.CreateUnit))
			r.Get("/api/v1/buildings/{buildingID}/units", orNotImplemented(deps.ListUnits))
			r.Get("/api/v1/units/{unitID}", orNotImplemented(deps.GetUnit))
			r.Post("/api/v1/units/{unitID}/rooms", orNotImplemented(deps.CreateRoom))
			r.Get("/api/v1/units/{unitID}/rooms", orNotImplemented(deps.ListUnitRooms))
			r.Get("/api/v1/rooms", orNotImplemented(deps.ListRoomListings))
			r.Get("/api/v1/rooms/{roomID}", orNotImplemented(deps.GetRoom))
			r.Patch("/api/v1/rooms/{roomID}", orNotImplemented(deps.UpdateRoom))

			r.Post("/api/v1/seekers", orNotImplemented(deps.CreateSeeker))
			r.Get("/api/v1/seekers", orNotImplemented(deps.ListSeekers))
			r.Get("/api/v1/seekers/{seekerID}", orNotImplemented(deps.GetSeeker))

			r.Post("/api/v1/tenants", orNotImplemented(deps.CreateTenant))
			r.Get("/api/v1/tenants", orNotImplemented(deps.ListTenants))
			r.Get("/api/v1/tenants/{tenantID}", orNotImplemented(deps.GetTenant))
			r.Post("/api/v1/contracts", orNotImplemented(deps.CreateContract))
			r.Get("/api/v1/contracts", orNotImplemented(deps.ListContracts))
			r.Get("/api/v1/contracts/{contractID}", orNotImplemented(deps.GetContract))
			r.Post("/api/v1/contracts/{contractID}/payments", orNotImplemented(deps.CreatePayment))
			r.Get("/api/v1/payments", orNotImplemented(deps.ListPayments))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
