package credentials

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const defaultRedisPrefix = "admin-console:"

// RedisStore keeps the pair in one redis hash so both tokens are written and removed together.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a redis-backed store using the default key prefix.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return NewRedisStoreWithPrefix(client, defaultRedisPrefix)
}

// NewRedisStoreWithPrefix creates a redis-backed store with a custom key prefix.
func NewRedisStoreWithPrefix(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    prefix + "credentials",
	}
}

// Key returns the redis key the pair is stored under.
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Save(ctx context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	if err := s.client.HSet(ctx, s.key, AccessTokenKey, pair.AccessToken, RefreshTokenKey, pair.RefreshToken).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Save] client.HSet")
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Pair, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Pair{}, false, nil
		}
		return Pair{}, false, errors.Wrap(err, "[RedisStore.Load] client.HGetAll")
	}

	pair := Pair{
		AccessToken:  fields[AccessTokenKey],
		RefreshToken: fields[RefreshTokenKey],
	}
	if !pair.Valid() {
		return Pair{}, false, nil
	}
	return pair, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Clear] client.Del")
	}
	return nil
}
