package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// Engine is the queue engine surface the poller drives.
type Engine interface {
	Tick(ctx context.Context) error
}

// Poller drives the queue engine at a fixed interval. A tick that is
// still running when the next interval fires makes the new tick a skip,
// not a queue-up.
type Poller struct {
	engine   Engine
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	tickMu sync.Mutex
}

// New creates a poller for the given engine.
func New(engine Engine, interval time.Duration) *Poller {
	return &Poller{
		engine:   engine,
		interval: interval,
	}
}

// Start launches the poll loop. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	log := logger.FromContext(ctx)
	log.Info("Starting queue poller", zap.Duration("interval", p.interval))

	done := p.done
	utils.SafeGo(func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				log.Info("Queue poller stopped")
				return
			case <-ticker.C:
				p.runTick(loopCtx)
			}
		}
	}, nil)
}

// Stop halts the poll loop and waits for an in-flight tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.cancel()
	<-p.done
	p.started = false
}

// RunNow triggers one tick outside the schedule, used by admin tooling.
// Returns false when a tick was already in flight.
func (p *Poller) RunNow(ctx context.Context) bool {
	return p.runTick(ctx)
}

func (p *Poller) runTick(ctx context.Context) bool {
	if !p.tickMu.TryLock() {
		observer.IncEngineTickSkipped()
		logger.FromContext(ctx).Warn("Skipping tick, previous tick still running")
		return false
	}
	defer p.tickMu.Unlock()

	if err := p.engine.Tick(ctx); err != nil {
		logger.FromContext(ctx).Error("Queue tick failed", zap.Error(err))
	}
	return true
}
