package domain

import "time"

// Direction is the ML model's view of where the underlying goes overnight.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Valid reports whether d is one of the three known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionNeutral:
		return true
	}
	return false
}

// Signal is the opaque output of the external prediction pipeline. The
// engine consumes it as-is; how it was produced is out of scope.
type Signal struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // in [0, 1]
	GeneratedAt time.Time `json:"generated_at"`
}
