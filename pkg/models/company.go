// Package models contains shared data models used across the RentDesk codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the account that owns every other record. API keys, buildings,
// residents and notifications are all scoped to exactly one company.
type Company struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
