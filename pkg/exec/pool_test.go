package exec

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			counter.Add(1)
		})
	}
	pool.Wait()

	assert.Equal(t, int64(100), counter.Load())
}

func TestWorkerPool_StartTwiceIsNoop(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	pool.Submit(func() { counter.Add(1) })
	pool.Wait()
	assert.Equal(t, int64(1), counter.Load())
}

func TestWorkerPool_DefaultsWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0)
	pool.Start()
	defer pool.Stop()

	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	<-done
}
