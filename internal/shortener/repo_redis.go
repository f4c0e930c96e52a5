package shortener

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

const (
	DefaultCacheKeyPrefix = "shortlinks"
	DefaultCacheMissTTL   = time.Minute
)

var errCachedMiss = errors.New("short code cached as missing")

// CacheConfig configures NewCachedRepository.
type CacheConfig struct {
	KeyPrefix string
	MissTTL   time.Duration
	Logger    *slog.Logger
}

// cachedRepo remembers short codes that the wrapped store reported as unknown,
// so repeated lookups of bogus codes do not reach the database.
//
// Only absence is cached. Link rows carry a live click count and are always
// read from the store. Redis failures are logged and the call falls through.
type cachedRepo struct {
	next    Repository
	rdb     redis.UniversalClient
	prefix  string
	missTTL time.Duration
	logger  *slog.Logger
}

// NewCachedRepository wraps next with a Redis negative cache.
func NewCachedRepository(next Repository, rdb redis.UniversalClient, cfg CacheConfig) Repository {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultCacheKeyPrefix
	}
	if cfg.MissTTL <= 0 {
		cfg.MissTTL = DefaultCacheMissTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &cachedRepo{
		next:    next,
		rdb:     rdb,
		prefix:  cfg.KeyPrefix,
		missTTL: cfg.MissTTL,
		logger:  cfg.Logger,
	}
}

func (c *cachedRepo) missKey(shortCode string) string {
	return c.prefix + ":miss:" + shortCode
}

// genKey is bumped by Create so a lookup that raced with it can tell its
// NotFound is stale.
func (c *cachedRepo) genKey(shortCode string) string {
	return c.prefix + ":gen:" + shortCode
}

func (c *cachedRepo) knownMissing(ctx context.Context, shortCode string) bool {
	n, err := c.rdb.Exists(ctx, c.missKey(shortCode)).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "cache lookup failed", "short_code", shortCode, "error", err.Error())
		return false
	}
	return n > 0
}

// generation returns the current Create generation of shortCode, "" if none.
func (c *cachedRepo) generation(ctx context.Context, shortCode string) (string, bool) {
	gen, err := c.rdb.Get(ctx, c.genKey(shortCode)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "cache lookup failed", "short_code", shortCode, "error", err.Error())
		return "", false
	}
	return gen, true
}

// rememberMissing writes the miss marker only if no Create has bumped the
// generation since seenGen was read.
func (c *cachedRepo) rememberMissing(ctx context.Context, shortCode, seenGen string) {
	genKey := c.genKey(shortCode)

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if gen != seenGen {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.missKey(shortCode), 1, c.missTTL)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "miss not cached, code created during lookup", "short_code", shortCode)
	default:
		c.logger.WarnContext(ctx, "cache write failed", "short_code", shortCode, "error", err.Error())
	}
}

func (c *cachedRepo) Create(ctx context.Context, link Link) (Link, error) {
	created, err := c.next.Create(ctx, link)
	if err != nil {
		return Link{}, err
	}

	// The code may have been looked up before it existed, or a lookup may still
	// be in flight. Bumping the generation stops the latter from writing a
	// marker. The generation outlives the miss TTL so it cannot reset mid-lookup.
	genKey := c.genKey(created.ShortCode)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, 2*c.missTTL)
		pipe.Del(ctx, c.missKey(created.ShortCode))
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed",
			"short_code", created.ShortCode,
			"error", err.Error(),
		)
	}
	return created, nil
}

func (c *cachedRepo) GetByShortCode(ctx context.Context, shortCode string) (Link, error) {
	const op = "shortener.cachedRepo.GetByShortCode"

	if c.knownMissing(ctx, shortCode) {
		return Link{}, errx.E(op, errx.NotFound, errCachedMiss)
	}

	seenGen, genOK := c.generation(ctx, shortCode)

	link, err := c.next.GetByShortCode(ctx, shortCode)
	if errx.KindOf(err) == errx.NotFound && genOK {
		c.rememberMissing(ctx, shortCode, seenGen)
	}
	return link, err
}

// ResolveAndTrack never records a miss: the store's NotFound here may mean expired.
func (c *cachedRepo) ResolveAndTrack(ctx context.Context, shortCode string, at time.Time) (Link, error) {
	const op = "shortener.cachedRepo.ResolveAndTrack"

	if c.knownMissing(ctx, shortCode) {
		return Link{}, errx.E(op, errx.NotFound, errCachedMiss)
	}
	return c.next.ResolveAndTrack(ctx, shortCode, at)
}

func (c *cachedRepo) List(ctx context.Context, offset, limit int) ([]Link, error) {
	return c.next.List(ctx, offset, limit)
}

func (c *cachedRepo) Count(ctx context.Context) (int64, error) {
	return c.next.Count(ctx)
}
