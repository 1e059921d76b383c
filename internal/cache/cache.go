package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"moodcanvas/internal/archive"
)

const listKeyPrefix = "archive:list:"

// Options configure the archive cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache memoizes archive listing pages in redis. Entries are keyed by a
// hash of the list parameters and expire after a short TTL so freshly
// archived paintings show up within a bucket.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to redis and returns a Cache. The connection is verified
// eagerly so misconfiguration fails at startup, not first request.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// ListKey derives the cache key for one set of listing parameters.
func ListKey(opts archive.ListOptions) string {
	payload, _ := json.Marshal(struct {
		Limit  int        `json:"limit"`
		Cursor string     `json:"cursor"`
		From   *time.Time `json:"from"`
		To     *time.Time `json:"to"`
	}{opts.Limit, opts.Cursor, opts.From, opts.To})

	sum := sha256.Sum256(payload)
	return listKeyPrefix + hex.EncodeToString(sum[:])
}

// GetPage returns a cached page for the given key, reporting whether one
// was found. Redis errors are returned so callers can decide whether to
// degrade.
func (c *Cache) GetPage(ctx context.Context, key string) (archive.Page, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return archive.Page{}, false, nil
		}
		return archive.Page{}, false, fmt.Errorf("cache get: %w", err)
	}

	var page archive.Page
	if err := json.Unmarshal(data, &page); err != nil {
		// A corrupt entry behaves like a miss.
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed cache entry")
		return archive.Page{}, false, nil
	}
	return page, true, nil
}

// SetPage stores a page under the given key with the configured TTL.
func (c *Cache) SetPage(ctx context.Context, key string, page archive.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateLists removes every cached listing page. Called after a new
// painting is archived.
func (c *Cache) InvalidateLists(ctx context.Context) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, listKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
