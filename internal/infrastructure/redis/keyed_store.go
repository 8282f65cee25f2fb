package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const tableMarker = "__table__"

// KeyedStore implements ports.KeyedStore on Redis so that several service
// replicas share one quote table. Entries never expire; the table's existence
// is tracked by a marker key written with SETNX and checked on every call, so
// removing the marker externally turns Put back into a no-op.
type KeyedStore struct {
	r      redis.Cmdable
	prefix string
}

func NewKeyedStore(r redis.Cmdable, prefix string) *KeyedStore {
	return &KeyedStore{r: r, prefix: prefix}
}

func (s *KeyedStore) Exists(ctx context.Context) bool {
	n, err := s.r.Exists(ctx, namespaced(s.prefix, tableMarker)).Result()
	return err == nil && n > 0
}

func (s *KeyedStore) Create(ctx context.Context) error {
	return s.r.SetNX(ctx, namespaced(s.prefix, tableMarker), time.Now().UTC().Format(time.RFC3339), 0).Err()
}

func (s *KeyedStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.r.Get(ctx, namespaced(s.prefix, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *KeyedStore) Put(ctx context.Context, key, value string) error {
	if !s.Exists(ctx) {
		return nil
	}
	return s.r.Set(ctx, namespaced(s.prefix, key), value, 0).Err()
}
