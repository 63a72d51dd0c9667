package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// cartTTL bounds how long an abandoned cart survives in Redis.
const cartTTL = 30 * 24 * time.Hour

// RedisStore keeps each cart as a JSON blob under cart:<device>.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) redisKey(key string) string { return "cart:" + key }

// Load fetches and decodes the cart blob.  A missing key is an empty
// cart, not an error.
func (s *RedisStore) Load(ctx context.Context, key string) (map[uint64]int, error) {
	bs, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return map[uint64]int{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := map[uint64]int{}
	if err := json.Unmarshal(bs, &items); err != nil {
		// A corrupt blob is discarded rather than wedging the cart.
		return map[uint64]int{}, nil
	}
	return items, nil
}

// Save encodes and writes the full mapping, refreshing the TTL.
func (s *RedisStore) Save(ctx context.Context, key string, items map[uint64]int) error {
	bs, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.redisKey(key), bs, cartTTL).Err()
}

// MemoryStore is an in-process Store used in tests and when Redis is
// unavailable at startup.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]map[uint64]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]map[uint64]int)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (map[uint64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.carts[key]
	if !ok {
		return map[uint64]int{}, nil
	}
	out := make(map[uint64]int, len(saved))
	for id, q := range saved {
		out[id] = q
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, items map[uint64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[uint64]int, len(items))
	for id, q := range items {
		cp[id] = q
	}
	s.carts[key] = cp
	return nil
}
