// Package probe implements the readiness contract the deployment tooling
// relies on: periodic HTTP health probes with a start grace period and a
// consecutive-failure budget, mirroring container HEALTHCHECK semantics.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status is the supervised process state.
type Status int

const (
	// StatusStarting means no probe has succeeded yet and the start
	// grace period may still be running.
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Config holds the probe schedule. Zero values fall back to the
// deployment defaults via Normalize.
type Config struct {
	Interval         time.Duration
	Timeout          time.Duration
	StartPeriod      time.Duration
	FailureThreshold int
}

// DefaultConfig matches the parameters the container tooling declares:
// 30s interval, 30s per-probe timeout, 5s start period, 3 retries.
func DefaultConfig() Config {
	return Config{
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		StartPeriod:      5 * time.Second,
		FailureThreshold: 3,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.StartPeriod < 0 {
		c.StartPeriod = d.StartPeriod
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	return c
}

// Probe performs a single health probe against url. It succeeds iff the
// endpoint answers with a 2xx status within the timeout. Connection
// refusal, timeouts and non-2xx statuses are all failures.
func Probe(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// Supervisor polls a health endpoint and tracks the process state.
//
// Failures inside the start period never count toward the failure
// threshold. A success at any time, including inside the grace window,
// marks the process healthy and resets the failure counter. Once
// FailureThreshold consecutive counted failures accumulate, the process
// is marked unhealthy; it recovers on the next success.
type Supervisor struct {
	url string
	cfg Config

	mu       sync.Mutex
	status   Status
	failures int

	onChange func(Status)
	healthy  chan struct{}
	once     sync.Once
}

// NewSupervisor builds a supervisor for url. onChange may be nil.
func NewSupervisor(url string, cfg Config, onChange func(Status)) *Supervisor {
	return &Supervisor{
		url:      url,
		cfg:      cfg.normalize(),
		status:   StatusStarting,
		onChange: onChange,
		healthy:  make(chan struct{}),
	}
}

// Status returns the current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run probes until ctx is cancelled. The first probe fires immediately;
// subsequent probes fire every Interval.
func (s *Supervisor) Run(ctx context.Context) {
	start := time.Now()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.observe(ctx, start)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.observe(ctx, start)
		}
	}
}

// WaitHealthy blocks until the first healthy observation, the process is
// declared unhealthy, or ctx expires. It returns nil only on healthy.
func (s *Supervisor) WaitHealthy(ctx context.Context) error {
	for {
		select {
		case <-s.healthy:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			if s.Status() == StatusUnhealthy {
				return fmt.Errorf("service %s became unhealthy", s.url)
			}
		}
	}
}

func (s *Supervisor) observe(ctx context.Context, start time.Time) {
	err := Probe(ctx, s.url, s.cfg.Timeout)
	inGrace := time.Since(start) < s.cfg.StartPeriod

	s.mu.Lock()
	prev := s.status

	if err == nil {
		s.failures = 0
		s.status = StatusHealthy
	} else if !inGrace {
		s.failures++
		log.WithFields(log.Fields{
			"url":      s.url,
			"failures": s.failures,
			"budget":   s.cfg.FailureThreshold,
		}).WithError(err).Warn("health probe failed")
		if s.failures >= s.cfg.FailureThreshold {
			s.status = StatusUnhealthy
		}
	} else {
		log.WithError(err).Debug("health probe failed inside start period, not counted")
	}

	cur := s.status
	s.mu.Unlock()

	if cur == StatusHealthy {
		s.once.Do(func() { close(s.healthy) })
	}
	if cur != prev {
		log.WithFields(log.Fields{"url": s.url, "status": cur.String()}).Info("health status changed")
		if s.onChange != nil {
			s.onChange(cur)
		}
	}
}
