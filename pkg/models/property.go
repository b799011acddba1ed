package models

import (
	"time"

	"github.com/google/uuid"
)

type Building struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name"       json:"name"`
	Address   string    `db:"address"    json:"address"`
	City      string    `db:"city"       json:"city"`
	Latitude  *float64  `db:"latitude"   json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude"  json:"longitude,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Unit struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	CompanyID  uuid.UUID `db:"company_id"  json:"company_id"`
	BuildingID uuid.UUID `db:"building_id" json:"building_id"`
	Label      string    `db:"label"       json:"label"`
	Floor      *int      `db:"floor"       json:"floor,omitempty"`
	AreaM2     float64   `db:"area_m2"     json:"area_m2"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// Room is a rentable room inside a shared unit. House rules and the current
// housemates are stored on the room so matching can run without joins.
type Room struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	CompanyID      uuid.UUID  `db:"company_id"      json:"company_id"`
	UnitID         uuid.UUID  `db:"unit_id"         json:"unit_id"`
	Name           string     `db:"name"            json:"name"`
	AreaM2         float64    `db:"area_m2"         json:"area_m2"`
	Occupants      int        `db:"occupants"       json:"occupants"`
	MonthlyPrice   float64    `db:"monthly_price"   json:"monthly_price"`
	Amenities      []string   `db:"amenities"       json:"amenities"`
	SmokingAllowed bool       `db:"smoking_allowed" json:"smoking_allowed"`
	PetsAllowed    bool       `db:"pets_allowed"    json:"pets_allowed"`
	CouplesAllowed bool       `db:"couples_allowed" json:"couples_allowed"`
	AvailableFrom  *time.Time `db:"available_from"  json:"available_from,omitempty"`
	HousemateAges  []int      `db:"housemate_ages"  json:"housemate_ages"`
	HousemateTags  []string   `db:"housemate_tags"  json:"housemate_tags"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// RoomListing is a room joined with the location of its building.
type RoomListing struct {
	Room
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
