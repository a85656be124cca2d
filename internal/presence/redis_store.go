package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenKeyPrefix = "presence:last_seen:"

// RedisLastSeenStore keeps one hash per subscriber so "last seen" survives
// restarts of the API process.
type RedisLastSeenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLastSeenStore stores records for ttl; zero keeps them forever.
func NewRedisLastSeenStore(client *redis.Client, ttl time.Duration) *RedisLastSeenStore {
	return &RedisLastSeenStore{client: client, ttl: ttl}
}

// NewRedisLastSeenStoreFromURL parses a redis:// or rediss:// URL.
func NewRedisLastSeenStoreFromURL(redisURL string, ttl time.Duration) (*RedisLastSeenStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisLastSeenStore(redis.NewClient(opt), ttl), nil
}

func (s *RedisLastSeenStore) Save(ctx context.Context, rec Record) error {
	key := lastSeenKeyPrefix + rec.SubscriberID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"status", string(rec.Status),
			"last_activity", rec.LastActivity.UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisLastSeenStore) Load(ctx context.Context, subscriberID string) (Record, bool, error) {
	values, err := s.client.HGetAll(ctx, lastSeenKeyPrefix+subscriberID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if len(values) == 0 {
		return Record{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, values["last_activity"])
	if err != nil {
		return Record{}, false, err
	}
	return Record{SubscriberID: subscriberID, Status: Status(values["status"]), LastActivity: at}, true, nil
}

func (s *RedisLastSeenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisLastSeenStore) Close() error {
	return s.client.Close()
}

var _ LastSeenStore = (*RedisLastSeenStore)(nil)
