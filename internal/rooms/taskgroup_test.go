package rooms

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskGroupStopCancelsContextAndWaitsForTasks(t *testing.T) {
	g := NewTaskGroup(context.Background())
	var ran, observedDone int32

	g.Go(func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		<-ctx.Done()
		atomic.StoreInt32(&observedDone, 1)
		return nil
	})

	// Give the goroutine a chance to start before stopping.
	for i := 0; i < 100 && atomic.LoadInt32(&ran) == 0; i++ {
		time.Sleep(time.Millisecond)
	}

	g.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&observedDone))
}

func TestTaskGroupGoAfterStopIsANoop(t *testing.T) {
	g := NewTaskGroup(context.Background())
	g.Stop()

	var ran int32
	g.Go(func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestTaskGroupStopIsIdempotent(t *testing.T) {
	g := NewTaskGroup(context.Background())
	g.Stop()
	assert.NotPanics(t, func() { g.Stop() })
}
