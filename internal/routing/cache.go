package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mmcloughlin/geohash"
)

const (
	// CacheTTL is how long a cached path entry remains valid. Street paths
	// barely change, but traffic-aware durations do, so we keep it short.
	CacheTTL = 5 * time.Minute

	// cacheQueryTimeout is the deadline for each cache read/write query.
	cacheQueryTimeout = 5 * time.Second

	// geohashPrecision controls the spatial resolution of the cache key.
	// Precision 7 ≈ ±76m latitude / ±152m longitude cell — appropriate for
	// urban transit where stops can be as close as 200m apart.
	geohashPrecision = 7
)

// CacheStore abstracts the storage layer for path caching. Implementations
// must never return an expired entry; a miss is (nil, nil).
type CacheStore interface {
	// GetCachedPath returns a cached RoutingResponse for the given key, or
	// (nil, nil) when there is no valid (non-expired) entry.
	GetCachedPath(ctx context.Context, key string) (*RoutingResponse, error)

	// SetCachedPath upserts a path entry with an expiry of now + CacheTTL.
	SetCachedPath(ctx context.Context, key string, resp *RoutingResponse) error
}

// Logger is a printf-style logging function injected into CachedRouter.
// Using a function type (rather than an interface) keeps the dependency minimal
// and makes test doubles trivial to write.
type Logger func(format string, args ...any)

// CachedRouter wraps another Router and transparently caches its results.
// Cache keys combine geohashes of both endpoints with the travel profile.
//
// The check-then-call sequence is not atomic across concurrent callers: two
// requests that both miss will both hit the external service. That duplicate
// work is acceptable — this is a best-effort cache, not a single-flight
// barrier.
type CachedRouter struct {
	inner      Router
	store      CacheStore
	logger     Logger // called when async cache writes fail; nil = silent
	afterStore func() // optional hook called after every async store attempt; used in tests for synchronization
}

// CachedRouterOption configures a CachedRouter.
type CachedRouterOption func(*CachedRouter)

// WithLogger sets a logger that is called when the async cache write fails.
// In production, pass a log.Printf-compatible function. If not set, errors
// are silently dropped.
func WithLogger(l Logger) CachedRouterOption {
	return func(r *CachedRouter) { r.logger = l }
}

// withAfterStore sets a hook called after every async store attempt (success or
// failure). Intended exclusively for test synchronization — do not use in production.
func withAfterStore(fn func()) CachedRouterOption {
	return func(r *CachedRouter) { r.afterStore = fn }
}

// NewCachedRouter wraps inner with a cache-aside layer backed by store.
// Optional behavior (logging, test synchronization) is configured via opts.
func NewCachedRouter(inner Router, store CacheStore, opts ...CachedRouterOption) *CachedRouter {
	r := &CachedRouter{inner: inner, store: store}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route satisfies the Router interface.
// It checks the cache first; on a miss it delegates to the inner Router and
// persists the result. Inner-router failures are never cached.
func (r *CachedRouter) Route(ctx context.Context, req RoutingRequest) (*RoutingResponse, error) {
	key := CacheKey(req)

	cached, err := r.store.GetCachedPath(ctx, key)
	if err != nil {
		// Cache read failures are non-fatal: fall through to the real router.
		_ = err
	}
	if cached != nil {
		return cached, nil
	}

	// Cache miss — call the inner router.
	resp, err := r.inner.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	// Persist asynchronously so we don't add cache-write latency to the hot path.
	// We use a background context to avoid cancellation if the caller's context
	// expires right after the API call returns.
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), cacheQueryTimeout)
		defer cancel()

		if err := r.store.SetCachedPath(storeCtx, key, resp); err != nil {
			if r.logger != nil {
				r.logger("routing: cache: async write failed (key=%s): %v", key, err)
			}
		}

		if r.afterStore != nil {
			r.afterStore()
		}
	}()

	return resp, nil
}

// CacheKey derives the cache key for a routing request: geohash cells of both
// endpoints plus the profile.
func CacheKey(req RoutingRequest) string {
	o := geohash.EncodeWithPrecision(req.OriginLat, req.OriginLon, geohashPrecision)
	d := geohash.EncodeWithPrecision(req.DestinationLat, req.DestinationLon, geohashPrecision)
	return o + ":" + d + ":" + string(req.Profile)
}

// --- pgx-backed CacheStore implementation ---

// pgCacheStore is a CacheStore backed by pgx, for deployments where cached
// paths should survive restarts and be shared between instances.
type pgCacheStore struct {
	pool *pgxpool.Pool
}

// NewPgCacheStore creates a CacheStore backed by the given connection pool.
func NewPgCacheStore(pool *pgxpool.Pool) CacheStore {
	return &pgCacheStore{pool: pool}
}

// GetCachedPath queries route_path_cache for a valid (non-expired) entry.
func (s *pgCacheStore) GetCachedPath(ctx context.Context, key string) (*RoutingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	const q = `
		SELECT polyline, distance_m, duration_s
		FROM route_path_cache
		WHERE cache_key  = $1
		  AND expires_at > NOW()`

	var (
		polyline  string
		distanceM int32
		durationS int32
	)

	err := s.pool.QueryRow(ctx, q, key).Scan(&polyline, &distanceM, &durationS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("routing: cache: get: %w", err)
	}

	return &RoutingResponse{
		Polyline:  polyline,
		DistanceM: int(distanceM),
		DurationS: int(durationS),
	}, nil
}

// SetCachedPath upserts a path entry into route_path_cache.
// The expiry time is computed in Go from CacheTTL so that the constant is the
// single source of truth — the SQL never encodes the TTL value directly.
func (s *pgCacheStore) SetCachedPath(ctx context.Context, key string, resp *RoutingResponse) error {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	expiresAt := time.Now().Add(CacheTTL)

	const q = `
		INSERT INTO route_path_cache
			(cache_key, polyline, distance_m, duration_s, calc_ts, expires_at)
		VALUES
			($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (cache_key)
		DO UPDATE SET
			polyline   = EXCLUDED.polyline,
			distance_m = EXCLUDED.distance_m,
			duration_s = EXCLUDED.duration_s,
			calc_ts    = EXCLUDED.calc_ts,
			expires_at = EXCLUDED.expires_at`

	_, err := s.pool.Exec(ctx, q,
		key,
		resp.Polyline,
		int32(resp.DistanceM),
		int32(resp.DurationS),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("routing: cache: set: %w", err)
	}
	return nil
}
