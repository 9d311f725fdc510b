// Package connectivity tracks whether the backing store is reachable.
// Mutating chat operations consult the flag and fail fast while offline
// instead of queuing writes; there is deliberately no outbox.
package connectivity

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"BizLink/internal/lib/sl"
)

// Pinger is the health probe of the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor polls the store and exposes an online flag.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	online   atomic.Bool
	log      *slog.Logger
}

func NewMonitor(pinger Pinger, interval time.Duration, log *slog.Logger) *Monitor {
	m := &Monitor{
		pinger:   pinger,
		interval: interval,
		log:      log.With(sl.Module("connectivity")),
	}
	// optimistic until the first probe says otherwise
	m.online.Store(true)
	return m
}

// Online reports the last known reachability of the store.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline overrides the flag. Used at startup and by tests.
func (m *Monitor) SetOnline(v bool) {
	m.online.Store(v)
}

// Run polls until ctx is cancelled. Transitions are logged once per flip.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	was := m.online.Swap(err == nil)

	switch {
	case err != nil && was:
		m.log.Warn("store unreachable, going offline", sl.Err(err))
	case err == nil && !was:
		m.log.Info("store reachable again, back online")
	}
}
