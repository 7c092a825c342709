package client

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultActivityDebounce = time.Second
	defaultIdleLogoutWait   = 10 * time.Second
)

// ActivityKind names a user interaction that counts as activity
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
	ActivityTouch   ActivityKind = "touch"
	ActivityFocus   ActivityKind = "focus"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityPointer, ActivityKey, ActivityScroll, ActivityTouch, ActivityFocus:
		return true
	}
	return false
}

// InactivityMonitor logs the admin out after a period without
// interaction. It keeps a single idle timer that activity resets.
type InactivityMonitor struct {
	mu        sync.Mutex
	running   bool
	lastReset time.Time
	timer     clockwork.Timer
	// bumped on every reset so a timer that fired late is ignored
	generation uint64

	onIdle   func(ctx context.Context)
	clock    clockwork.Clock
	logger   auth.Logger
	timeout  time.Duration
	debounce time.Duration
}

type InactivityOption func(*InactivityMonitor)

func WithIdleTimeout(d time.Duration) InactivityOption {
	return func(m *InactivityMonitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithActivityDebounce(d time.Duration) InactivityOption {
	return func(m *InactivityMonitor) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

func WithMonitorClock(clock clockwork.Clock) InactivityOption {
	return func(m *InactivityMonitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithMonitorLogger(logger auth.Logger) InactivityOption {
	return func(m *InactivityMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIdleHandler replaces the default idle action
func WithIdleHandler(fn func(ctx context.Context)) InactivityOption {
	return func(m *InactivityMonitor) {
		if fn != nil {
			m.onIdle = fn
		}
	}
}

// NewInactivityMonitor returns a stopped monitor that logs manager out
// when the idle timer fires.
func NewInactivityMonitor(manager *TokenManager, opts ...InactivityOption) *InactivityMonitor {
	m := &InactivityMonitor{
		clock:    clockwork.NewRealClock(),
		logger:   auth.NewLogrusLogger(nil),
		timeout:  DefaultIdleTimeout,
		debounce: DefaultActivityDebounce,
	}
	if manager != nil {
		m.onIdle = func(ctx context.Context) {
			_ = manager.Logout(ctx)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Start arms the idle timer. Calling Start on a running monitor is a no-op.
func (m *InactivityMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.resetLocked(m.clock.Now())
}

func (m *InactivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *InactivityMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RecordActivity resets the idle timer. It reports whether the reset
// happened; unknown kinds and resets inside the debounce window are
// dropped.
func (m *InactivityMonitor) RecordActivity(kind ActivityKind) bool {
	if !kind.Valid() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}

	now := m.clock.Now()
	if now.Sub(m.lastReset) < m.debounce {
		return false
	}
	m.resetLocked(now)
	return true
}

// Bind starts the monitor while manager is authenticated and stops it
// otherwise. The returned function detaches it.
func (m *InactivityMonitor) Bind(manager *TokenManager) func() {
	unsubscribe := manager.Subscribe(func(authenticated bool) {
		if authenticated {
			m.Start()
			return
		}
		m.Stop()
	})
	if manager.IsAuthenticated() {
		m.Start()
	}
	return func() {
		unsubscribe()
		m.Stop()
	}
}

func (m *InactivityMonitor) resetLocked(now time.Time) {
	m.lastReset = now
	m.generation++
	gen := m.generation

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(m.timeout, func() {
		m.fire(gen)
	})
}

func (m *InactivityMonitor) fire(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.timer = nil
	onIdle := m.onIdle
	m.mu.Unlock()

	m.logger.Info("session idle, logging out")
	if onIdle == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultIdleLogoutWait)
	defer cancel()
	onIdle(ctx)
}
