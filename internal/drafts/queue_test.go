package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Number string  `json:"number"`
	Total  float64 `json:"total"`
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:drafts"), mr
}

func TestQueueHoldRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	redisStore, _ := newRedisStore(t)
	for name, store := range map[string]Store{"memory": NewMemoryStore(), "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			q := NewQueue(store)
			held, err := q.Hold(ctx, "purchase", Summary{PartyName: "PT Sumber", ItemCount: 3, Total: 245.5}, snapshot{Number: "PUR-0007", Total: 245.5})
			require.NoError(t, err)
			require.Contains(t, held.Label, "PT Sumber, 3 items, 245.50")

			listed, err := q.List(ctx, "purchase")
			require.NoError(t, err)
			require.Len(t, listed, 1)

			var restored snapshot
			d, err := q.Restore(ctx, held.ID, func(d HeldDraft) error {
				return json.Unmarshal(d.Snapshot, &restored)
			})
			require.NoError(t, err)
			require.Equal(t, held.ID, d.ID)
			require.Equal(t, snapshot{Number: "PUR-0007", Total: 245.5}, restored)

			listed, err = q.List(ctx, "")
			require.NoError(t, err)
			require.Empty(t, listed)

			_, err = q.Restore(ctx, held.ID, nil)
			require.ErrorIs(t, err, ErrDraftNotFound)
		})
	}
}

func TestQueueRestoreDecodeFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	q := NewQueue(store)
	held, err := q.Hold(ctx, "sales_return", Summary{ItemCount: 1}, snapshot{Number: "SR-1"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = q.Restore(ctx, held.ID, func(HeldDraft) error { return boom })
	require.ErrorIs(t, err, boom)

	listed, err := q.List(ctx, "sales_return")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestQueueDiscardAndKindFilter(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(NewMemoryStore())
	a, err := q.Hold(ctx, "purchase", Summary{ItemCount: 1}, snapshot{})
	require.NoError(t, err)
	_, err = q.Hold(ctx, "purchase_order", Summary{ItemCount: 2}, snapshot{})
	require.NoError(t, err)

	require.NoError(t, q.Discard(ctx, a.ID))
	require.ErrorIs(t, q.Discard(ctx, a.ID), ErrDraftNotFound)

	purchases, err := q.List(ctx, "purchase")
	require.NoError(t, err)
	require.Empty(t, purchases)
	orders, err := q.List(ctx, "purchase_order")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Contains(t, orders[0].Label, "No party")
}

func TestRedisStoreConcurrentHoldsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	q := NewQueue(store)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Hold(ctx, "purchase", Summary{ItemCount: 1}, snapshot{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("test:drafts", "{not json"))
	_, err := store.Load(context.Background())
	require.Error(t, err)
}
