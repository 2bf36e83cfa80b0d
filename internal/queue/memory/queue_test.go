package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

func TestQueuePutTakeFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Put(crawler.WorkItem{ID: id}))
	}
	require.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		item, err := q.Take(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, item.ID)
	}
	require.Equal(t, 0, q.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Join(ctx), context.DeadlineExceeded, "taken items stay unfinished until Done")
}

func TestQueueTakeBlocksUntilPut(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan crawler.WorkItem, 1)
	go func() {
		item, err := q.Take(context.Background())
		if err == nil {
			result <- item
		}
	}()

	select {
	case <-result:
		t.Fatal("take returned before put")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Put(crawler.WorkItem{ID: "late"}))
	select {
	case got := <-result:
		require.Equal(t, "late", got.ID)
	case <-time.After(time.Second):
		t.Fatal("take did not return item")
	}
}

func TestQueueJoinWaitsForEveryDone(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Join(context.Background()), "empty queue joins immediately")

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(crawler.WorkItem{ID: "x"}))
	}

	joined := make(chan struct{})
	go func() {
		_ = q.Join(context.Background())
		close(joined)
	}()

	for i := 0; i < 3; i++ {
		_, err := q.Take(context.Background())
		require.NoError(t, err)
		select {
		case <-joined:
			t.Fatalf("join returned after %d of 3 done calls", i)
		default:
		}
		require.NoError(t, q.Done())
	}

	require.Eventually(t, func() bool {
		select {
		case <-joined:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestQueueReusableAfterDrain(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	for round := 0; round < 2; round++ {
		require.NoError(t, q.Put(crawler.WorkItem{ID: "r"}))
		_, err := q.Take(context.Background())
		require.NoError(t, err)
		require.NoError(t, q.Done())
		require.NoError(t, q.Join(context.Background()))
	}
}

func TestQueueTooManyDone(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.ErrorIs(t, q.Done(), crawler.ErrTooManyDone)
}

func TestQueueCancelation(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Take(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, q.Put(crawler.WorkItem{ID: "pending"}))
	err = q.Join(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueCloseDrainsThenRejects(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Put(crawler.WorkItem{ID: "left"}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Put(crawler.WorkItem{ID: "late"}), crawler.ErrQueueClosed)
	item, err := q.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, "left", item.ID)
	_, err = q.Take(context.Background())
	require.True(t, errors.Is(err, crawler.ErrQueueClosed))
}

func TestQueueConcurrentConsumers(t *testing.T) {
	t.Parallel()

	const items = 200
	q := NewQueue()
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Take(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
				_ = q.Done()
			}
		}()
	}

	for i := 0; i < items; i++ {
		require.NoError(t, q.Put(crawler.WorkItem{ID: fmt.Sprintf("item-%d", i)}))
	}
	require.NoError(t, q.Join(context.Background()))
	cancel()
	wg.Wait()

	require.Len(t, seen, items)
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
}
