package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_ExecutesAllTasks(t *testing.T) {
	pool := NewWorkerPool(4, 100)
	pool.Start(context.Background())

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			counter.Add(1)
		})
	}
	pool.Stop()

	assert.Equal(t, int64(100), counter.Load())
}

func TestWorkerPool_TrySubmitFullQueue(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	// 池未启动，队列容量 1：第一次成功，第二次满
	assert.True(t, pool.TrySubmit(func() {}))
	assert.False(t, pool.TrySubmit(func() {}))

	pool.Start(context.Background())
	pool.Stop()
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(1, 10)
	pool.Start(context.Background())

	var counter atomic.Int64
	pool.Submit(func() { panic("task exploded") })
	pool.Submit(func() { counter.Add(1) })
	pool.Stop()

	assert.Equal(t, int64(1), counter.Load())
}

func TestWorkerPool_CancelledContextStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(2, 10)
	pool.Start(ctx)

	cancel()
	// 取消后 Stop 不会死锁
	pool.Stop()
}
