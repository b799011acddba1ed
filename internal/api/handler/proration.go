package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/proration"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// UnitRooms loads the stored rooms of a unit.
type UnitRooms interface {
	GetUnit(ctx context.Context, id, companyID uuid.UUID) (*models.Unit, error)
	ListRoomsByUnit(ctx context.Context, companyID, unitID uuid.UUID) ([]*models.Room, error)
}

type prorationRequest struct {
	Total  *float64        `json:"total"  validate:"required,gte=0,lte=1000000000000"`
	Method string          `json:"method" validate:"omitempty,oneof=equal by_occupants by_surface mixed"`
	Rooms  []prorationRoom `json:"rooms"  validate:"required,min=1,max=100,dive"`
}

type prorationRoom struct {
	ID        string  `json:"id"        validate:"required,max=100"`
	Name      string  `json:"name"      validate:"max=200"`
	Occupants int     `json:"occupants" validate:"gte=0"`
	AreaM2    float64 `json:"area_m2"   validate:"gte=0"`
}

// NewProrationHandler returns an http.HandlerFunc for
// POST /api/v1/room-rental/proration.
func NewProrationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := companyID(w, r); !ok {
			return
		}

		var req prorationRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		rooms := make([]proration.RoomInput, len(req.Rooms))
		for i, room := range req.Rooms {
			rooms[i] = proration.RoomInput{
				ID:        room.ID,
				Name:      room.Name,
				Occupants: room.Occupants,
				AreaM2:    room.AreaM2,
			}
		}
		writeSplit(w, *req.Total, rooms, req.Method)
	}
}

// NewUnitProrationHandler returns an http.HandlerFunc for
// GET /api/v1/room-rental/proration?unit_id=&total=&method=, which splits the
// total over the rooms stored for the unit.
func NewUnitProrationHandler(units UnitRooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		unitID, err := uuid.Parse(q.Get("unit_id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unit_id must be a valid UUID", nil)
			return
		}
		total, err := strconv.ParseFloat(q.Get("total"), 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "total must be a number", nil)
			return
		}

		if _, err := units.GetUnit(r.Context(), unitID, cid); err != nil {
			writeStoreError(w, r, err, "Unit")
			return
		}
		stored, err := units.ListRoomsByUnit(r.Context(), cid, unitID)
		if err != nil {
			writeStoreError(w, r, err, "Room")
			return
		}

		rooms := make([]proration.RoomInput, len(stored))
		for i, room := range stored {
			rooms[i] = proration.RoomInput{
				ID:        room.ID.String(),
				Name:      room.Name,
				Occupants: room.Occupants,
				AreaM2:    room.AreaM2,
			}
		}
		writeSplit(w, total, rooms, q.Get("method"))
	}
}

func writeSplit(w http.ResponseWriter, total float64, rooms []proration.RoomInput, rawMethod string) {
	method, err := proration.ParseMethod(rawMethod)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	result, err := proration.Split(total, rooms, method)
	if err != nil {
		switch {
		case errors.Is(err, proration.ErrNoRooms),
			errors.Is(err, proration.ErrInvalidTotal),
			errors.Is(err, proration.ErrInvalidRoom):
			response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		}
		return
	}
	response.JSON(w, result)
}
