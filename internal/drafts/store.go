package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists the whole held-draft collection. Update must apply fn as a
// single atomic read-modify-write of the collection.
type Store interface {
	Load(ctx context.Context) ([]HeldDraft, error)
	Update(ctx context.Context, fn func([]HeldDraft) ([]HeldDraft, error)) error
}

const maxUpdateAttempts = 8

// ErrContention is returned when a Redis update lost the optimistic race too
// many times in a row.
var ErrContention = errors.New("drafts: too much contention on draft store")

// RedisStore keeps the collection as one JSON document under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore constructs a Redis backed store.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "entry:drafts"
	}
	return &RedisStore{client: client, key: key}
}

// Load returns the stored drafts, or none when the key is missing.
func (s *RedisStore) Load(ctx context.Context) ([]HeldDraft, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("drafts: load: %w", err)
	}
	return decodeDrafts(payload)
}

// Update watches the key and replaces the collection in a MULTI block,
// retrying when another writer got in first.
func (s *RedisStore) Update(ctx context.Context, fn func([]HeldDraft) ([]HeldDraft, error)) error {
	txf := func(tx *redis.Tx) error {
		var current []HeldDraft
		payload, err := tx.Get(ctx, s.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeDrafts(payload); err != nil {
				return err
			}
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, raw, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func decodeDrafts(payload []byte) ([]HeldDraft, error) {
	var out []HeldDraft
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("drafts: decode: %w", err)
	}
	return out, nil
}

// MemoryStore is an in-process Store used by tests and single-node setups.
type MemoryStore struct {
	mu     sync.Mutex
	drafts []HeldDraft
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the collection.
func (s *MemoryStore) Load(context.Context) ([]HeldDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HeldDraft(nil), s.drafts...), nil
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(_ context.Context, fn func([]HeldDraft) ([]HeldDraft, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(append([]HeldDraft(nil), s.drafts...))
	if err != nil {
		return err
	}
	s.drafts = next
	return nil
}
