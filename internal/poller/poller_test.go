package poller

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
)

func TestMain(m *testing.M) {
	// The loop goroutine can log after a test returns, so use a nop
	// logger instead of the per-test zaptest one.
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type countingEngine struct {
	ticks int32
	block chan struct{}
}

func (e *countingEngine) Tick(ctx context.Context) error {
	atomic.AddInt32(&e.ticks, 1)
	if e.block != nil {
		<-e.block
	}
	return nil
}

func TestPoller_TicksAtInterval(t *testing.T) {
	engine := &countingEngine{}
	p := New(engine, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.ticks) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	engine := &countingEngine{}
	p := New(engine, time.Hour)

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	p.Stop()

	// A second Stop on an already stopped poller must not panic.
	p.Stop()
}

func TestPoller_SkipsOverlappingTick(t *testing.T) {
	engine := &countingEngine{block: make(chan struct{})}
	p := New(engine, time.Hour)

	done := make(chan bool)
	go func() {
		done <- p.RunNow(context.Background())
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.ticks) == 1
	}, time.Second, time.Millisecond)

	// First tick is still blocked inside the engine.
	assert.False(t, p.RunNow(context.Background()))

	close(engine.block)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.ticks))
}

func TestPoller_StopWaitsForLoopExit(t *testing.T) {
	engine := &countingEngine{}
	p := New(engine, 5*time.Millisecond)

	p.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&engine.ticks) >= 1
	}, time.Second, time.Millisecond)

	p.Stop()
	after := atomic.LoadInt32(&engine.ticks)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&engine.ticks))
}
