package models

// Calibration is the sky solution extracted from a solver WCS artifact.
// Geometry fields are nil when extraction failed; Error carries the parse
// failure in that case. A Calibration with nil geometry still belongs to a
// successful solve.
type Calibration struct {
	RA          *float64 `json:"ra"`
	Dec         *float64 `json:"dec"`
	FieldWidth  *float64 `json:"field_width"`
	FieldHeight *float64 `json:"field_height"`
	Orientation *float64 `json:"orientation"`
	Error       string   `json:"error,omitempty"`
}

// Degraded reports whether geometry extraction failed.
func (c *Calibration) Degraded() bool {
	return c.RA == nil
}
