package models

import (
	"time"

	"github.com/google/uuid"
)

// Positioning is one persisted plate-solve attempt for a user. Geometry
// fields are nil when the attempt did not produce a solution. Records are
// created once per attempt and never mutated.
type Positioning struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	UserID      uuid.UUID `db:"user_id"      json:"user_id"`
	ImagePath   string    `db:"image_path"   json:"image_path"`
	RA          *float64  `db:"ra"           json:"ra"`
	Dec         *float64  `db:"dec"          json:"dec"`
	FieldWidth  *float64  `db:"field_width"  json:"field_width"`
	FieldHeight *float64  `db:"field_height" json:"field_height"`
	Orientation *float64  `db:"orientation"  json:"orientation"`
	Solved      bool      `db:"solved"       json:"solved"`
	SolveTime   *float64  `db:"solve_time"   json:"solve_time"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
