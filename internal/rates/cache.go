package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
)

const DefaultTTL = 600 * time.Second

// Source looks up the current USD to EUR rate.
type Source interface {
	Fetch(ctx context.Context) (float64, error)
}

// Cache holds the last known rate. A caller that finds it stale refreshes
// it while holding the lock; concurrent callers wait on the same lock.
type Cache struct {
	mu        sync.Mutex
	source    Source
	ttl       time.Duration
	value     float64
	updatedAt time.Time
	now       func() time.Time
	log       *slog.Logger
}

func NewCache(source Source, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

// Get returns the cached rate while it is fresh, otherwise refreshes it.
// When the refresh fails it falls back to the previous rate, or 0 if there
// never was one.
func (c *Cache) Get(ctx context.Context) float64 {
	const op = "rates.Cache.Get"

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.value > 0 && now.Sub(c.updatedAt) < c.ttl {
		return c.value
	}

	// Detached from the triggering request; the source's client timeout
	// bounds it.
	rate, err := c.source.Fetch(context.WithoutCancel(ctx))
	if err == nil && rate <= 0 {
		err = fmt.Errorf("non-positive rate %v", rate)
	}
	if err != nil {
		c.log.Warn("Error fetching rates",
			slog.String("op", op),
			slog.String("kind", string(apperr.RateUnavailable)),
			slog.Float64("stale_rate", c.value),
			slog.String("error", err.Error()),
		)
		return c.value
	}

	c.value = rate
	c.updatedAt = now

	return rate
}
