package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Pinger checks the story API.
type Pinger interface {
	Ping(ctx context.Context) error
}

type MonitorConfig struct {
	// Interval between checks while online.
	Interval time.Duration
	// CheckTimeout bounds a single check.
	CheckTimeout time.Duration
	// InitialBackoff and MaxBackoff shape the check schedule while offline.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *MonitorConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 3 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
}

// ConnectivityMonitor tracks whether the story API is reachable and fires
// listeners on transitions. Listeners registered with OnOnline run on every
// transition into online, including the first successful check.
type ConnectivityMonitor struct {
	pinger Pinger
	cfg    MonitorConfig
	log    logging.Logger

	mu       sync.RWMutex
	status   Status
	onChange []func(ctx context.Context, from, to Status)
	onOnline []func(ctx context.Context)
}

func NewConnectivityMonitor(p Pinger, cfg MonitorConfig, log logging.Logger) *ConnectivityMonitor {
	if log == nil {
		log = logging.Discard()
	}
	cfg.applyDefaults()
	return &ConnectivityMonitor{
		pinger: p,
		cfg:    cfg,
		log:    log.With("component", "connectivity"),
		status: StatusUnknown,
	}
}

func (m *ConnectivityMonitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *ConnectivityMonitor) Online() bool {
	return m.Status() == StatusOnline
}

// OnChange registers fn for every status transition.
func (m *ConnectivityMonitor) OnChange(fn func(ctx context.Context, from, to Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// OnOnline registers fn for transitions into online.
func (m *ConnectivityMonitor) OnOnline(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Check pings once and records the result.
func (m *ConnectivityMonitor) Check(ctx context.Context) Status {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	err := m.pinger.Ping(pctx)
	cancel()

	next := StatusOnline
	if err != nil {
		next = StatusOffline
		m.log.Debug(ctx, "check failed", "error", err)
	}
	m.set(ctx, next)
	return next
}

func (m *ConnectivityMonitor) set(ctx context.Context, next Status) {
	m.mu.Lock()
	prev := m.status
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.status = next
	changeFns := slices.Clone(m.onChange)
	var onlineFns []func(context.Context)
	if next == StatusOnline {
		onlineFns = append(onlineFns, m.onOnline...)
	}
	m.mu.Unlock()

	connectivityTransitions.WithLabelValues(string(next)).Inc()
	m.log.Info(ctx, "connectivity changed", "from", prev, "to", next)

	for _, fn := range changeFns {
		fn(ctx, prev, next)
	}
	for _, fn := range onlineFns {
		fn(ctx)
	}
}

// Run checks until ctx is done: at a fixed interval while online, with
// exponential backoff while offline.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.InitialBackoff
	bo.MaxInterval = m.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		var wait time.Duration
		if m.Check(ctx) == StatusOnline {
			bo.Reset()
			wait = m.cfg.Interval
		} else {
			wait = bo.NextBackOff()
			if wait == backoff.Stop {
				wait = m.cfg.MaxBackoff
			}
		}
		timer.Reset(wait)
	}
}
