package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"moldetect-service/internal/domain"
)

const (
	DefaultPoolSize        = 2
	DefaultAcquireTimeout  = 5 * time.Second
	DefaultReplenishPeriod = 60 * time.Second
)

// Factory builds a fresh predictor, typically a model session.
type Factory func() (Predictor, error)

// Pool hands out predictors to one request at a time. Sessions lost to
// inference errors are discarded and rebuilt in the background; when no
// session can be rebuilt the pool reports not ready and Acquire fails
// with ErrModelNotAvailable.
type Pool struct {
	sessions       chan Predictor
	size           int
	factory        Factory
	device         string
	acquireTimeout time.Duration

	mu     sync.Mutex
	closed bool
	lost   int

	metrics poolMetrics

	stopReplenish chan struct{}
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	totalDiscarded  int64
	acquireFailures int64
}

// Metrics is a point-in-time snapshot of pool usage.
type Metrics struct {
	Size            int   `json:"pool_size"`
	InUse           int   `json:"sessions_in_use"`
	Lost            int   `json:"sessions_lost"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	TotalDiscarded  int64 `json:"total_discarded"`
	AcquireFailures int64 `json:"acquire_failures"`
}

// NewPool builds size predictors up front. Construction fails when the
// very first predictor cannot be built, so a missing checkpoint is
// detected at startup.
func NewPool(factory Factory, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &Pool{
		sessions:       make(chan Predictor, size),
		size:           size,
		factory:        factory,
		acquireTimeout: DefaultAcquireTimeout,
		stopReplenish:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		session, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("initialize session %d: %w", i, err)
		}
		if p.device == "" {
			p.device = session.Device()
		}
		p.sessions <- session
	}

	go p.replenishLoop(DefaultReplenishPeriod)

	return p, nil
}

// Device reports the execution provider the sessions resolved to.
func (p *Pool) Device() string { return p.device }

// Ready reports whether at least one session is alive.
func (p *Pool) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.lost < p.size
}

// Acquire blocks until a session is free, the acquire timeout elapses,
// or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) (Predictor, error) {
	if !p.Ready() {
		return nil, domain.ErrModelNotAvailable
	}

	select {
	case session := <-p.sessions:
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-time.After(p.acquireTimeout):
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, domain.ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a healthy session to the pool.
func (p *Pool) Release(session Predictor) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		session.Close()
		return
	}

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.sessions <- session
}

// Discard drops a session that failed and tries to build a replacement
// immediately. When rebuilding fails (e.g. the checkpoint was removed)
// the capacity loss is recorded and retried by the replenish loop.
func (p *Pool) Discard(session Predictor) {
	session.Close()

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalDiscarded++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	replacement, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.lost++
		lost := p.lost
		p.mu.Unlock()
		log.WithError(err).WithField("sessions_lost", lost).Error("failed to rebuild model session")
		return
	}
	p.sessions <- replacement
}

// Close drains and destroys all sessions.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopReplenish)
	close(p.sessions)
	for session := range p.sessions {
		session.Close()
	}
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Metrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	p.mu.Lock()
	lost := p.lost
	p.mu.Unlock()

	return Metrics{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		Lost:            lost,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		TotalDiscarded:  p.metrics.totalDiscarded,
		AcquireFailures: p.metrics.acquireFailures,
	}
}

func (p *Pool) replenishLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopReplenish:
			return
		case <-ticker.C:
			p.replenish()
		}
	}
}

func (p *Pool) replenish() {
	p.mu.Lock()
	missing := p.lost
	p.mu.Unlock()

	for i := 0; i < missing; i++ {
		session, err := p.factory()
		if err != nil {
			return
		}
		p.mu.Lock()
		p.lost--
		p.mu.Unlock()
		p.sessions <- session
		log.Info("rebuilt lost model session")
	}
}
