package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/cache"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// MatchInvalidator drops cached rankings after room changes.
type MatchInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

func invalidateMatches(ctx context.Context, inv MatchInvalidator, cid uuid.UUID) {
	if inv == nil {
		return
	}
	if _, err := inv.DeletePattern(ctx, cache.MatchCompanyPattern(cid)); err != nil {
		slog.WarnContext(ctx, "match cache invalidation failed", "company_id", cid, "error", err)
	}
}

func coordinatesPaired(w http.ResponseWriter, lat, lon *float64) bool {
	if (lat == nil) != (lon == nil) {
		response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED",
			"latitude and longitude must be given together", nil)
		return false
	}
	return true
}

// --- Buildings ---

type buildingRequest struct {
	Name      string   `json:"name"      validate:"required,max=200"`
	Address   string   `json:"address"   validate:"max=500"`
	City      string   `json:"city"      validate:"required,max=100"`
	Latitude  *float64 `json:"latitude"  validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// NewCreateBuildingHandler returns an http.HandlerFunc for POST /api/v1/buildings.
func NewCreateBuildingHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req buildingRequest
		if !decodeAndValidate(w, r, &req) || !coordinatesPaired(w, req.Latitude, req.Longitude) {
			return
		}

		now := time.Now().UTC()
		b := &models.Building{
			ID:        uuid.New(),
			CompanyID: cid,
			Name:      strings.TrimSpace(req.Name),
			Address:   strings.TrimSpace(req.Address),
			City:      strings.TrimSpace(req.City),
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := ps.CreateBuilding(r.Context(), b); err != nil {
			writeStoreError(w, r, err, "Building")
			return
		}
		response.Created(w, b)
	}
}

func NewListBuildingsHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		items, total, err := ps.ListBuildings(r.Context(), cid, page)
		if err != nil {
			writeStoreError(w, r, err, "Building")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}

func NewGetBuildingHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "buildingID")
		if !ok {
			return
		}
		b, err := ps.GetBuilding(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Building")
			return
		}
		response.JSON(w, b)
	}
}

// --- Units ---

type unitRequest struct {
	Label  string  `json:"label"   validate:"required,max=100"`
	Floor  *int    `json:"floor"   validate:"omitempty,gte=-5,lte=200"`
	AreaM2 float64 `json:"area_m2" validate:"gte=0"`
}

// NewCreateUnitHandler returns an http.HandlerFunc for
// POST /api/v1/buildings/{buildingID}/units.
func NewCreateUnitHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		buildingID, ok := uuidParam(w, r, "buildingID")
		if !ok {
			return
		}
		var req unitRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		now := time.Now().UTC()
		u := &models.Unit{
			ID:         uuid.New(),
			CompanyID:  cid,
			BuildingID: buildingID,
			Label:      strings.TrimSpace(req.Label),
			Floor:      req.Floor,
			AreaM2:     req.AreaM2,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := ps.CreateUnit(r.Context(), u); err != nil {
			writeStoreError(w, r, err, "Unit")
			return
		}
		response.Created(w, u)
	}
}

func NewListUnitsHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		buildingID, ok := uuidParam(w, r, "buildingID")
		if !ok {
			return
		}
		if _, err := ps.GetBuilding(r.Context(), buildingID, cid); err != nil {
			writeStoreError(w, r, err, "Building")
			return
		}
		units, err := ps.ListUnits(r.Context(), cid, buildingID)
		if err != nil {
			writeStoreError(w, r, err, "Unit")
			return
		}
		response.JSON(w, nonNil(units))
	}
}

func NewGetUnitHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "unitID")
		if !ok {
			return
		}
		u, err := ps.GetUnit(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Unit")
			return
		}
		response.JSON(w, u)
	}
}

// --- Rooms ---

type roomRequest struct {
	Name           string   `json:"name"            validate:"required,max=100"`
	AreaM2         float64  `json:"area_m2"         validate:"gte=0"`
	Occupants      int      `json:"occupants"       validate:"gte=0,lte=10"`
	MonthlyPrice   float64  `json:"monthly_price"   validate:"gte=0"`
	Amenities      []string `json:"amenities"       validate:"omitempty,max=50,dive,required,max=50"`
	SmokingAllowed bool     `json:"smoking_allowed"`
	PetsAllowed    bool     `json:"pets_allowed"`
	CouplesAllowed bool     `json:"couples_allowed"`
	AvailableFrom  string   `json:"available_from"  validate:"omitempty,datetime=2006-01-02"`
	HousemateAges  []int    `json:"housemate_ages"  validate:"omitempty,max=20,dive,gte=16,lte=120"`
	HousemateTags  []string `json:"housemate_tags"  validate:"omitempty,max=50,dive,required,max=50"`
}

// NewCreateRoomHandler returns an http.HandlerFunc for
// POST /api/v1/units/{unitID}/rooms.
func NewCreateRoomHandler(ps store.PropertyStore, inv MatchInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		unitID, ok := uuidParam(w, r, "unitID")
		if !ok {
			return
		}
		var req roomRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		available, _ := parseDate(req.AvailableFrom)

		now := time.Now().UTC()
		room := &models.Room{
			ID:             uuid.New(),
			CompanyID:      cid,
			UnitID:         unitID,
			Name:           strings.TrimSpace(req.Name),
			AreaM2:         req.AreaM2,
			Occupants:      req.Occupants,
			MonthlyPrice:   req.MonthlyPrice,
			Amenities:      nonNil(req.Amenities),
			SmokingAllowed: req.SmokingAllowed,
			PetsAllowed:    req.PetsAllowed,
			CouplesAllowed: req.CouplesAllowed,
			AvailableFrom:  available,
			HousemateAges:  nonNil(req.HousemateAges),
			HousemateTags:  nonNil(req.HousemateTags),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := ps.CreateRoom(r.Context(), room); err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		invalidateMatches(r.Context(), inv, cid)
		response.Created(w, room)
	}
}

type roomPatchRequest struct {
	Name           *string   `json:"name"            validate:"omitempty,min=1,max=100"`
	AreaM2         *float64  `json:"area_m2"         validate:"omitempty,gte=0"`
	Occupants      *int      `json:"occupants"       validate:"omitempty,gte=0,lte=10"`
	MonthlyPrice   *float64  `json:"monthly_price"   validate:"omitempty,gte=0"`
	Amenities      *[]string `json:"amenities"       validate:"omitempty,max=50"`
	SmokingAllowed *bool     `json:"smoking_allowed"`
	PetsAllowed    *bool     `json:"pets_allowed"`
	CouplesAllowed *bool     `json:"couples_allowed"`
	AvailableFrom  *string   `json:"available_from"  validate:"omitempty,datetime=2006-01-02"`
	HousemateAges  *[]int    `json:"housemate_ages"  validate:"omitempty,max=20"`
	HousemateTags  *[]string `json:"housemate_tags"  validate:"omitempty,max=50"`
}

// NewUpdateRoomHandler returns an http.HandlerFunc for
// PATCH /api/v1/rooms/{roomID}. Only the fields present in the body change.
func NewUpdateRoomHandler(ps store.PropertyStore, inv MatchInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}
		var req roomPatchRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		room, err := ps.GetRoom(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		applyRoomPatch(room, req)

		if err := ps.UpdateRoom(r.Context(), room); err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		invalidateMatches(r.Context(), inv, cid)
		response.JSON(w, room)
	}
}

func applyRoomPatch(room *models.Room, req roomPatchRequest) {
	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.AreaM2 != nil {
		room.AreaM2 = *req.AreaM2
	}
	if req.Occupants != nil {
		room.Occupants = *req.Occupants
	}
	if req.MonthlyPrice != nil {
		room.MonthlyPrice = *req.MonthlyPrice
	}
	if req.Amenities != nil {
		room.Amenities = nonNil(*req.Amenities)
	}
	if req.SmokingAllowed != nil {
		room.SmokingAllowed = *req.SmokingAllowed
	}
	if req.PetsAllowed != nil {
		room.PetsAllowed = *req.PetsAllowed
	}
	if req.CouplesAllowed != nil {
		room.CouplesAllowed = *req.CouplesAllowed
	}
	if req.AvailableFrom != nil {
		// An empty string clears the date.
		room.AvailableFrom, _ = parseDate(*req.AvailableFrom)
	}
	if req.HousemateAges != nil {
		room.HousemateAges = nonNil(*req.HousemateAges)
	}
	if req.HousemateTags != nil {
		room.HousemateTags = nonNil(*req.HousemateTags)
	}
}

func NewGetRoomHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "roomID")
		if !ok {
			return
		}
		room, err := ps.GetRoom(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		response.JSON(w, room)
	}
}

func NewListUnitRoomsHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		unitID, ok := uuidParam(w, r, "unitID")
		if !ok {
			return
		}
		if _, err := ps.GetUnit(r.Context(), unitID, cid); err != nil {
			writeStoreError(w, r, err, "Unit")
			return
		}
		rooms, err := ps.ListRoomsByUnit(r.Context(), cid, unitID)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		response.JSON(w, nonNil(rooms))
	}
}

// NewListRoomListingsHandler returns an http.HandlerFunc for
// GET /api/v1/rooms?city=&max_price=&available_by=&unoccupied=.
func NewListRoomListingsHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		filter := store.RoomFilter{CompanyID: cid, City: strings.TrimSpace(q.Get("city"))}

		var err error
		if v := q.Get("max_price"); v != "" {
			filter.MaxPrice, err = strconv.ParseFloat(v, 64)
			if err != nil || filter.MaxPrice < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "max_price must be a non-negative number", nil)
				return
			}
		}
		if filter.AvailableBy, err = parseDate(q.Get("available_by")); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "available_by "+err.Error(), nil)
			return
		}
		if v := q.Get("unoccupied"); v != "" {
			filter.OnlyUnoccupied, err = strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unoccupied must be true or false", nil)
				return
			}
		}

		listings, err := ps.ListRoomListings(r.Context(), filter)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}
		response.JSON(w, nonNil(listings))
	}
}

// --- Seeker profiles ---

type seekerRequest struct {
	FullName         string   `json:"full_name"         validate:"required,max=200"`
	Email            *string  `json:"email"             validate:"omitempty,email"`
	BudgetMin        float64  `json:"budget_min"        validate:"gte=0"`
	BudgetMax        float64  `json:"budget_max"        validate:"gte=0,gtefield=BudgetMin"`
	MoveIn           string   `json:"move_in"           validate:"omitempty,datetime=2006-01-02"`
	City             string   `json:"city"              validate:"max=100"`
	Latitude         *float64 `json:"latitude"          validate:"omitempty,latitude"`
	Longitude        *float64 `json:"longitude"         validate:"omitempty,longitude"`
	MaxDistanceKm    float64  `json:"max_distance_km"   validate:"gte=0,lte=500"`
	DesiredAmenities []string `json:"desired_amenities" validate:"omitempty,max=50,dive,required,max=50"`
	Smoker           bool     `json:"smoker"`
	HasPets          bool     `json:"has_pets"`
	IsCouple         bool     `json:"is_couple"`
	Age              *int     `json:"age"               validate:"omitempty,gte=16,lte=120"`
	LifestyleTags    []string `json:"lifestyle_tags"    validate:"omitempty,max=50,dive,required,max=50"`
}

// NewCreateSeekerHandler returns an http.HandlerFunc for POST /api/v1/seekers.
func NewCreateSeekerHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req seekerRequest
		if !decodeAndValidate(w, r, &req) || !coordinatesPaired(w, req.Latitude, req.Longitude) {
			return
		}
		moveIn, _ := parseDate(req.MoveIn)

		now := time.Now().UTC()
		p := &models.SeekerProfile{
			ID:               uuid.New(),
			CompanyID:        cid,
			FullName:         strings.TrimSpace(req.FullName),
			Email:            req.Email,
			BudgetMin:        req.BudgetMin,
			BudgetMax:        req.BudgetMax,
			MoveIn:           moveIn,
			City:             strings.TrimSpace(req.City),
			Latitude:         req.Latitude,
			Longitude:        req.Longitude,
			MaxDistanceKm:    req.MaxDistanceKm,
			DesiredAmenities: nonNil(req.DesiredAmenities),
			Smoker:           req.Smoker,
			HasPets:          req.HasPets,
			IsCouple:         req.IsCouple,
			Age:              req.Age,
			LifestyleTags:    nonNil(req.LifestyleTags),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := ps.CreateSeekerProfile(r.Context(), p); err != nil {
			writeStoreError(w, r, err, "Seeker profile")
			return
		}
		response.Created(w, p)
	}
}

func NewListSeekersHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		items, total, err := ps.ListSeekerProfiles(r.Context(), cid, page)
		if err != nil {
			writeStoreError(w, r, err, "Seeker profile")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}

func NewGetSeekerHandler(ps store.PropertyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "seekerID")
		if !ok {
			return
		}
		p, err := ps.GetSeekerProfile(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Seeker profile")
			return
		}
		response.JSON(w, p)
	}
}
