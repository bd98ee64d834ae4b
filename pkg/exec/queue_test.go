package exec

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockingQueue_FIFO(t *testing.T) {
	q := NewBlockingQueue[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestBlockingQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewBlockingQueue[int](1)
	require.True(t, q.Push(1))

	pushed := make(chan struct{})
	go func() {
		q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push should block on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := q.Pop()
	require.True(t, ok)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push did not resume after pop")
	}
}

func TestBlockingQueue_PopBlocksWhenEmpty(t *testing.T) {
	q := NewBlockingQueue[int](1)

	got := make(chan int)
	go func() {
		v, ok := q.Pop()
		require.True(t, ok)
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("pop did not resume after push")
	}
}

func TestBlockingQueue_ShutdownDrainsConsumers(t *testing.T) {
	q := NewBlockingQueue[int](4)
	q.Push(1)
	q.Push(2)
	q.Shutdown()

	// remaining entries are still delivered
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// then consumers return promptly
	_, ok = q.Pop()
	assert.False(t, ok)

	// producers fail immediately
	assert.False(t, q.Push(3))
}

func TestBlockingQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := NewBlockingQueue[int](8)
	const n = 200

	var wg sync.WaitGroup
	results := make(chan int, n)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				results <- v
			}
		}()
	}

	for i := 0; i < n; i++ {
		require.True(t, q.Push(i))
	}
	q.Shutdown()
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		seen[v] = true
	}
	assert.Len(t, seen, n)
}
