package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/arjunmehta/overnightbot/internal/cache/redis"
	"github.com/arjunmehta/overnightbot/internal/domain"
)

// RedisSource reads the signal document an external model publishes at a
// fixed key. The document is replaced in place; only the newest value
// matters, so a plain GET beats a stream here.
type RedisSource struct {
	rdb    *redis.Client
	key    string
	maxAge time.Duration

	now func() time.Time
}

func NewRedisSource(c *cacheredis.Client, key string, maxAge time.Duration) *RedisSource {
	return &RedisSource{
		rdb:    c.Underlying(),
		key:    key,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Latest returns the published signal. A missing key, an undecodable
// document or one older than maxAge all map to ErrSignalUnavailable.
func (s *RedisSource) Latest(ctx context.Context) (domain.Signal, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Signal{}, fmt.Errorf("signal: key %s not set: %w", s.key, domain.ErrSignalUnavailable)
	}
	if err != nil {
		return domain.Signal{}, fmt.Errorf("signal: read %s: %w", s.key, err)
	}

	var sig domain.Signal
	if err := json.Unmarshal(raw, &sig); err != nil {
		return domain.Signal{}, fmt.Errorf("signal: decode %s: %v: %w", s.key, err, domain.ErrSignalUnavailable)
	}
	if !sig.Direction.Valid() {
		return domain.Signal{}, fmt.Errorf("signal: invalid direction %q: %w", sig.Direction, domain.ErrSignalUnavailable)
	}

	if s.maxAge > 0 && s.now().Sub(sig.GeneratedAt) > s.maxAge {
		return domain.Signal{}, fmt.Errorf("signal: generated %s ago, max age %s: %w",
			s.now().Sub(sig.GeneratedAt).Round(time.Second), s.maxAge, domain.ErrSignalUnavailable)
	}

	return sig, nil
}
