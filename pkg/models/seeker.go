package models

import (
	"time"

	"github.com/google/uuid"
)

// SeekerProfile describes someone looking for a coliving room.
type SeekerProfile struct {
	ID               uuid.UUID  `db:"id"                json:"id"`
	CompanyID        uuid.UUID  `db:"company_id"        json:"company_id"`
	FullName         string     `db:"full_name"         json:"full_name"`
	Email            *string    `db:"email"             json:"email,omitempty"`
	BudgetMin        float64    `db:"budget_min"        json:"budget_min"`
	BudgetMax        float64    `db:"budget_max"        json:"budget_max"`
	MoveIn           *time.Time `db:"move_in"           json:"move_in,omitempty"`
	City             string     `db:"city"              json:"city"`
	Latitude         *float64   `db:"latitude"          json:"latitude,omitempty"`
	Longitude        *float64   `db:"longitude"         json:"longitude,omitempty"`
	MaxDistanceKm    float64    `db:"max_distance_km"   json:"max_distance_km"`
	DesiredAmenities []string   `db:"desired_amenities" json:"desired_amenities"`
	Smoker           bool       `db:"smoker"            json:"smoker"`
	HasPets          bool       `db:"has_pets"          json:"has_pets"`
	IsCouple         bool       `db:"is_couple"         json:"is_couple"`
	Age              *int       `db:"age"               json:"age,omitempty"`
	LifestyleTags    []string   `db:"lifestyle_tags"    json:"lifestyle_tags"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}
