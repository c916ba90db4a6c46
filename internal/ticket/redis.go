package ticket

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "talentlink:ws-ticket:"

// RedisStore shares tickets between server instances. Expiry is native key
// TTL and redemption is GETDEL, which is atomic on the server.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (r *RedisStore) Put(ctx context.Context, ticket string, userID uint, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, redisKeyPrefix+ticket, strconv.FormatUint(uint64(userID), 10), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTicketCollision
	}
	return nil
}

func (r *RedisStore) Take(ctx context.Context, ticket string) (uint, bool, error) {
	val, err := r.rdb.GetDel(ctx, redisKeyPrefix+ticket).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uint(id), true, nil
}
