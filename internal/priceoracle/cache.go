package priceoracle

import (
	"context"
	"sync"
	"time"

	"github.com/agentwood/voiceledger/internal/clock"
	"github.com/agentwood/voiceledger/internal/metrics"
	"go.uber.org/zap"
)

// CachedOracle decorates an Oracle with a bounded-TTL cache. Refreshes are
// last-writer-wins; a fetch failure serves the last known value regardless of
// age. Staleness is acceptable here, incorrectness is not. The cache is
// per-instance, so multi-instance deployments may briefly disagree on price.
type CachedOracle struct {
	upstream Oracle
	clock    clock.Clock
	ttl      time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
	primed    bool
}

func NewCachedOracle(upstream Oracle, clk clock.Clock, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *CachedOracle {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedOracle{
		upstream: upstream,
		clock:    clk,
		ttl:      ttl,
		log:      log.Named("priceoracle.cache"),
		metrics:  m,
	}
}

func (c *CachedOracle) countFetch(outcome string) {
	if c.metrics != nil {
		c.metrics.OraclePriceFetches.WithLabelValues(outcome).Inc()
	}
}

func (c *CachedOracle) CurrentPrice(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.primed && now.Sub(c.fetchedAt) < c.ttl {
		c.countFetch("hit")
		return c.price, nil
	}

	price, err := c.upstream.CurrentPrice(ctx)
	if err != nil {
		if c.primed {
			c.countFetch("stale")
			c.log.Warn("oracle fetch failed, serving stale price",
				zap.Float64("price", c.price),
				zap.Time("fetched_at", c.fetchedAt),
				zap.Error(err),
			)
			return c.price, nil
		}
		c.countFetch("error")
		return 0, ErrPriceUnavailable
	}

	c.price = price
	c.fetchedAt = now
	c.primed = true
	c.countFetch("refresh")
	return price, nil
}
