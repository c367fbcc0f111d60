package ledger

import (
	"context"
	"time"

	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultMaxAge is how long a built ledger is served before the next read rebuilds it.
const DefaultMaxAge = 60 * time.Second

// Store holds built ledgers keyed by (chain, token). Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored ledger; ok is false when none is stored.
	Get(ctx context.Context, key Key) (l *Ledger, ok bool, err error)
	// Put replaces the stored ledger for key.
	Put(ctx context.Context, key Key, l *Ledger) error
}

// Rebuilder produces a fresh ledger. *Builder implements it.
type Rebuilder interface {
	Build(ctx context.Context, chainID uint64, token string) (*Ledger, error)
}

// Policy decides when a stored ledger is too old to serve.
type Policy struct {
	MaxAge time.Duration
}

// Fresh reports whether l, computed at l.ComputedAt, may still be served at now.
func (p Policy) Fresh(l *Ledger, now time.Time) bool {
	return now.Sub(l.ComputedAt) < p.MaxAge
}

// Cache memoizes ledgers lazily: a stale or missing entry is rebuilt on the read that finds it.
// There is no background refresh and no eviction. Concurrent misses on the same key each
// rebuild and the last Put wins.
type Cache struct {
	logger  *zap.Logger
	store   Store
	builder Rebuilder
	policy  Policy
	now     Clock

	lookups metric.Int64Counter
}

// NewCache wires a cache. A zero policy MaxAge selects DefaultMaxAge; a nil clock selects time.Now.
func NewCache(logger *zap.Logger, store Store, builder Rebuilder, policy Policy, now Clock) *Cache {
	if policy.MaxAge <= 0 {
		policy.MaxAge = DefaultMaxAge
	}
	if now == nil {
		now = time.Now
	}
	lookups, err := telemetry.Meter().Int64Counter("tokenscope.ledger.lookups",
		metric.WithDescription("Ledger cache lookups by result: hit, rebuilt, stale or error"))
	if err != nil {
		logger.Warn("Ledger lookup counter unavailable", zap.Error(err))
	}
	return &Cache{
		logger:  logger.Named("ledger.cache"),
		store:   store,
		builder: builder,
		policy:  policy,
		now:     now,
		lookups: lookups,
	}
}

// Get returns a ledger for (chainID, token) no older than the policy allows.
//
// When the rebuild fails and a stale ledger is stored, the stale ledger is returned and the
// store is left untouched. With nothing stored the rebuild error is returned.
func (c *Cache) Get(ctx context.Context, chainID uint64, token string) (*Ledger, error) {
	key := Key{ChainID: chainID, Token: token}

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Ledger store read failed, rebuilding",
			zap.Stringer("key", key),
			zap.Error(err))
		ok = false
	}
	if ok && c.policy.Fresh(cached, c.now()) {
		c.count(ctx, "hit")
		return cached, nil
	}

	built, err := c.builder.Build(ctx, chainID, token)
	if err != nil {
		if ok {
			c.logger.Warn("Ledger rebuild failed, serving stale entry",
				zap.Stringer("key", key),
				zap.Time("computedAt", cached.ComputedAt),
				zap.Error(err))
			c.count(ctx, "stale")
			return cached, nil
		}
		c.count(ctx, "error")
		return nil, err
	}

	if err := c.store.Put(ctx, key, built); err != nil {
		c.logger.Warn("Ledger store write failed",
			zap.Stringer("key", key),
			zap.Error(err))
	}

	c.count(ctx, "rebuilt")
	return built, nil
}

func (c *Cache) count(ctx context.Context, result string) {
	if c.lookups == nil {
		return
	}
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
