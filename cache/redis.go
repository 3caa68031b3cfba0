package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient parses a redis:// or rediss:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis client connected", zap.String("addr", opt.Addr))
	return client, nil
}

const (
	bracketKeyPrefix = "chess-clubs:bracket:"
	epochKeyPrefix   = "chess-clubs:bracket-epoch:"
)

// BracketKey is the cache key of a tournament's bracket view. The hash tag
// keeps the view and its epoch in one cluster slot.
func BracketKey(tournamentID int) string {
	return bracketKeyPrefix + "{" + strconv.Itoa(tournamentID) + "}"
}

// EpochKey counts invalidations of a tournament's bracket view.
func EpochKey(tournamentID int) string {
	return epochKeyPrefix + "{" + strconv.Itoa(tournamentID) + "}"
}

// setIfEpoch stores the view only while the epoch still matches the one the
// reader observed before loading it.
var setIfEpoch = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if (current or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// BracketCache stores rendered bracket views as JSON.
type BracketCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBracketCache(client *redis.Client, ttl time.Duration) *BracketCache {
	return &BracketCache{client: client, ttl: ttl}
}

// Get returns ok=false on a cache miss.
func (c *BracketCache) Get(ctx context.Context, tournamentID int) (data []byte, ok bool, err error) {
	data, err = c.client.Get(ctx, BracketKey(tournamentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read bracket %d from cache: %w", tournamentID, err)
	}
	return data, true, nil
}

// Epoch returns the current invalidation counter, 0 if it was never bumped.
func (c *BracketCache) Epoch(ctx context.Context, tournamentID int) (int64, error) {
	epoch, err := c.client.Get(ctx, EpochKey(tournamentID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read bracket epoch %d: %w", tournamentID, err)
	}
	return epoch, nil
}

// SetIfEpoch writes the view unless an invalidation happened after epoch was
// read. stored=false means the write was dropped.
func (c *BracketCache) SetIfEpoch(ctx context.Context, tournamentID int, epoch int64, data []byte) (stored bool, err error) {
	if c.ttl <= 0 {
		return false, nil
	}
	keys := []string{BracketKey(tournamentID), EpochKey(tournamentID)}
	res, err := setIfEpoch.Run(ctx, c.client, keys, strconv.FormatInt(epoch, 10), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to store bracket %d in cache: %w", tournamentID, err)
	}
	return res == 1, nil
}

// Invalidate bumps the epoch and drops the view atomically, so a reader that
// loaded before the bump can no longer store its copy.
func (c *BracketCache) Invalidate(ctx context.Context, tournamentID int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, EpochKey(tournamentID))
		pipe.Del(ctx, BracketKey(tournamentID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate bracket %d in cache: %w", tournamentID, err)
	}
	return nil
}
