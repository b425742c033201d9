/*
scheduler.go - Periodic SLA sweep

PURPOSE:
  SLA state is derived on read, so nothing in the database goes stale. The
  sweeper only publishes: on every tick it classifies the open demands and
  sets the agency_open_demands gauges, and logs when overdue work appears
  or clears.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads the clock once per sweep
  - Never writes to the store

CONFIGURATION:
  - Interval: How often to sweep (scheduler.interval, default 1m)
  - Enabled: Whether the sweeper is active (scheduler.enabled)

USAGE:
  sweeper := NewSLASweeper(handler, time.Minute)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - sla/board.go: OpenCounts
  - metrics/metrics.go: OpenDemands, SweepsTotal
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/agency-engine/metrics"
	"github.com/warp/agency-engine/sla"
)

// SLASweeper periodically publishes open-demand SLA counts.
type SLASweeper struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	sweepMu     sync.Mutex
	lastOverdue int
	lastRun     time.Time
}

// NewSLASweeper creates a new sweeper.
func NewSLASweeper(handler *Handler, interval time.Duration) *SLASweeper {
	return &SLASweeper{
		Handler:  handler,
		Interval: interval,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweeper.
func (s *SLASweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.Handler.Logger
	if !s.Enabled {
		log.Info("sla sweeper disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run()

	log.Info("sla sweeper started", zap.Duration("interval", s.Interval))
}

// Stop stops the sweeper and waits for an in-flight sweep.
func (s *SLASweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Handler.Logger.Info("sla sweeper stopped")
	}
}

func (s *SLASweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.Sweep(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep classifies the open demands once and publishes the counts.
func (s *SLASweeper) Sweep(ctx context.Context) (map[sla.Status]int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	h := s.Handler
	now := h.Clock.Now()

	demands, err := h.Store.ListDemands(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		h.Logger.Error("sla sweep failed", zap.Error(err))
		return nil, err
	}

	counts := h.Classifier.OpenCounts(demands, now)
	for _, st := range sla.Statuses {
		metrics.OpenDemands.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	metrics.SweepsTotal.WithLabelValues("ok").Inc()

	overdue := counts[sla.Overdue]
	if overdue != s.lastOverdue {
		h.Logger.Info("overdue demands changed",
			zap.Int("previous", s.lastOverdue),
			zap.Int("current", overdue),
			zap.Int("warning", counts[sla.Warning]),
		)
	}
	s.lastOverdue = overdue
	s.lastRun = now

	return counts, nil
}

// LastRun returns the instant of the last successful sweep.
func (s *SLASweeper) LastRun() time.Time {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.lastRun
}
