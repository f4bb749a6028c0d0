// Package signal provides the direction-signal sources the entry trigger
// consults before opening a position.
package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// Source yields the latest directional view on the underlying. An
// unavailable or stale signal is an error; the entry trigger treats it as
// a hard abort, never a default direction.
type Source interface {
	Latest(ctx context.Context) (domain.Signal, error)
}

// Static always returns the same direction. Used in demo mode and tests.
type Static struct {
	Direction domain.Direction
}

func (s Static) Latest(ctx context.Context) (domain.Signal, error) {
	if !s.Direction.Valid() {
		return domain.Signal{}, fmt.Errorf("signal: invalid static direction %q: %w", s.Direction, domain.ErrSignalUnavailable)
	}
	return domain.Signal{
		Direction:   s.Direction,
		Confidence:  1,
		GeneratedAt: time.Now(),
	}, nil
}
