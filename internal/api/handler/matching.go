package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/cache"
	"github.com/rentdesk/rentdesk/internal/matching"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
)

const (
	defaultMatchLimit = 10
	maxMatchLimit     = 100
	matchCacheTTL     = 5 * time.Minute
)

// MatchingStore provides seekers and rentable rooms.
type MatchingStore interface {
	GetSeekerProfile(ctx context.Context, id, companyID uuid.UUID) (*models.SeekerProfile, error)
	ListRoomListings(ctx context.Context, filter store.RoomFilter) ([]*models.RoomListing, error)
}

// ResultCache stores serialized rankings.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type matchingRequest struct {
	Seeker matching.Seeker      `json:"seeker"`
	Rooms  []matching.Candidate `json:"rooms" validate:"omitempty,max=500"`
	Limit  int                  `json:"limit" validate:"omitempty,min=1,max=100"`
}

type matchingResponse struct {
	ProfileID *uuid.UUID        `json:"profile_id,omitempty"`
	Evaluated int               `json:"evaluated"`
	Results   []matching.Result `json:"results"`
}

// NewMatchingHandler returns an http.HandlerFunc for
// POST /api/v1/coliving/matching. Without rooms in the body the company's
// available rooms are ranked.
func NewMatchingHandler(st MatchingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		var req matchingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if msg := checkSeeker(req.Seeker); msg != "" {
			response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", msg, nil)
			return
		}
		for i, c := range req.Rooms {
			if c.RoomID == "" {
				response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED",
					"rooms["+strconv.Itoa(i)+"].room_id is required", nil)
				return
			}
		}

		candidates := req.Rooms
		if len(candidates) == 0 {
			var err error
			candidates, err = availableCandidates(r.Context(), st, cid)
			if err != nil {
				writeStoreError(w, r, err, "Room")
				return
			}
		}

		limit := req.Limit
		if limit == 0 {
			limit = defaultMatchLimit
		}
		response.JSON(w, rank(req.Seeker, candidates, limit))
	}
}

// NewProfileMatchingHandler returns an http.HandlerFunc for
// GET /api/v1/coliving/matching?profile_id=&limit=. Rankings are cached per
// company, profile and limit.
func NewProfileMatchingHandler(st MatchingStore, c ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		profileID, err := uuid.Parse(q.Get("profile_id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "profile_id must be a valid UUID", nil)
			return
		}
		limit := defaultMatchLimit
		if v := q.Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit < 1 || limit > maxMatchLimit {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 100", nil)
				return
			}
		}

		key := cache.MatchResultKey(cid, profileID, limit)
		if data, found, err := c.Get(r.Context(), key); err == nil && found {
			var cached matchingResponse
			if json.Unmarshal(data, &cached) == nil {
				w.Header().Set("X-Cache", "HIT")
				response.JSON(w, cached)
				return
			}
		} else if err != nil {
			slog.WarnContext(r.Context(), "match cache read failed", "error", err)
		}

		profile, err := st.GetSeekerProfile(r.Context(), profileID, cid)
		if err != nil {
			writeStoreError(w, r, err, "Seeker profile")
			return
		}
		candidates, err := availableCandidates(r.Context(), st, cid)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}

		resp := rank(seekerFromProfile(profile), candidates, limit)
		resp.ProfileID = &profileID

		if data, err := json.Marshal(resp); err == nil {
			if err := c.Set(r.Context(), key, data, matchCacheTTL); err != nil {
				slog.WarnContext(r.Context(), "match cache write failed", "error", err)
			}
		}
		w.Header().Set("X-Cache", "MISS")
		response.JSON(w, resp)
	}
}

func rank(s matching.Seeker, candidates []matching.Candidate, limit int) matchingResponse {
	results := matching.Rank(s, candidates)
	if len(results) > limit {
		results = results[:limit]
	}
	return matchingResponse{Evaluated: len(candidates), Results: results}
}

func checkSeeker(s matching.Seeker) string {
	switch {
	case s.BudgetMin < 0 || s.BudgetMax < 0:
		return "seeker budget must not be negative"
	case s.BudgetMax > 0 && s.BudgetMin > s.BudgetMax:
		return "seeker budget_min must not exceed budget_max"
	case s.MaxDistanceKm < 0:
		return "seeker max_distance_km must not be negative"
	case (s.Latitude == nil) != (s.Longitude == nil):
		return "seeker latitude and longitude must be given together"
	}
	return ""
}

func availableCandidates(ctx context.Context, st MatchingStore, cid uuid.UUID) ([]matching.Candidate, error) {
	listings, err := st.ListRoomListings(ctx, store.RoomFilter{CompanyID: cid, OnlyUnoccupied: true})
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, len(listings))
	for i, l := range listings {
		out[i] = candidateFromListing(l)
	}
	return out, nil
}

func candidateFromListing(l *models.RoomListing) matching.Candidate {
	return matching.Candidate{
		RoomID:         l.ID.String(),
		Name:           l.Name,
		MonthlyPrice:   l.MonthlyPrice,
		Amenities:      l.Amenities,
		SmokingAllowed: l.SmokingAllowed,
		PetsAllowed:    l.PetsAllowed,
		CouplesAllowed: l.CouplesAllowed,
		AvailableFrom:  l.AvailableFrom,
		City:           l.City,
		Latitude:       l.Latitude,
		Longitude:      l.Longitude,
		HousemateAges:  l.HousemateAges,
		HousemateTags:  l.HousemateTags,
	}
}

func seekerFromProfile(p *models.SeekerProfile) matching.Seeker {
	return matching.Seeker{
		BudgetMin:        p.BudgetMin,
		BudgetMax:        p.BudgetMax,
		MoveIn:           p.MoveIn,
		City:             p.City,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		MaxDistanceKm:    p.MaxDistanceKm,
		DesiredAmenities: p.DesiredAmenities,
		Smoker:           p.Smoker,
		HasPets:          p.HasPets,
		IsCouple:         p.IsCouple,
		Age:              p.Age,
		LifestyleTags:    p.LifestyleTags,
	}
}
