package client

import (
	"context"
	"strconv"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshBuffer  = 2 * time.Minute
	DefaultRefreshTimeout = 30 * time.Second
)

// TokenManager owns the client auth state. It refreshes the access token
// ahead of expiry and clears the state when a refresh fails.
//
// Every state change bumps a generation counter. A refresh started under
// an older generation never writes back, so a Clear or Logout always wins
// over an in-flight refresh.
type TokenManager struct {
	mu            sync.Mutex
	state         AuthState
	authenticated bool
	generation    uint64
	timer         clockwork.Timer

	refresher      Refresher
	validator      SessionValidator
	snapshots      SnapshotStore
	emitter        *Emitter
	clock          clockwork.Clock
	logger         auth.Logger
	buffer         time.Duration
	refreshTimeout time.Duration
	inflight       singleflight.Group
}

// SessionValidator confirms a token pair with the server
type SessionValidator interface {
	Validate(ctx context.Context, accessToken, sessionToken string) (*auth.Session, error)
}

type TokenManagerOption func(*TokenManager)

func WithClock(clock clockwork.Clock) TokenManagerOption {
	return func(m *TokenManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithLogger(logger auth.Logger) TokenManagerOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRefreshBuffer sets how long before expiry the refresh runs
func WithRefreshBuffer(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if d >= 0 {
			m.buffer = d
		}
	}
}

func WithRefreshTimeout(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

// WithSnapshotStore persists the state on every change
func WithSnapshotStore(store SnapshotStore) TokenManagerOption {
	return func(m *TokenManager) {
		m.snapshots = store
	}
}

// WithRestoreValidation makes Restore confirm a snapshot with the server
// before trusting it
func WithRestoreValidation(v SessionValidator) TokenManagerOption {
	return func(m *TokenManager) {
		m.validator = v
	}
}

func NewTokenManager(refresher Refresher, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		refresher:      refresher,
		emitter:        NewEmitter(),
		clock:          clockwork.NewRealClock(),
		logger:         auth.NewLogrusLogger(nil),
		buffer:         DefaultRefreshBuffer,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.emitter.WithLogger(m.logger)
	return m
}

// Subscribe registers a listener for auth changes
func (m *TokenManager) Subscribe(listener Listener) func() {
	return m.emitter.Subscribe(listener)
}

// SetTokens installs a new token pair and schedules its refresh. A pair
// that is incomplete or already expired clears the state instead.
func (m *TokenManager) SetTokens(pair *auth.TokenPair) error {
	m.mu.Lock()
	err := m.setLocked(pair)
	m.persistLocked()
	m.mu.Unlock()

	m.emitter.Flush()
	return err
}

// IsAuthenticated checks expiry itself, an elapsed state is cleared
// before answering.
func (m *TokenManager) IsAuthenticated() bool {
	m.mu.Lock()
	if m.authenticated && !m.state.Valid(m.clock.Now()) {
		m.clearLocked()
		m.persistLocked()
		m.mu.Unlock()
		m.emitter.Flush()
		return false
	}
	ok := m.authenticated
	m.mu.Unlock()
	return ok
}

// State returns a copy of the current state
func (m *TokenManager) State() (AuthState, bool) {
	if !m.IsAuthenticated() {
		return AuthState{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.authenticated
}

// Clear drops the state. Listeners only hear about it when the manager
// was authenticated.
func (m *TokenManager) Clear() {
	m.mu.Lock()
	m.clearLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.emitter.Flush()
}

// Logout clears local state and then tells the server. The local state is
// gone whatever the server answers.
func (m *TokenManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.clearLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.emitter.Flush()

	if state.SessionToken == "" || m.refresher == nil {
		return nil
	}
	if err := m.refresher.Logout(ctx, state.AccessToken, state.SessionToken); err != nil {
		m.logger.Warn("logout notification failed", "error", err)
	}
	return nil
}

// Refresh runs a refresh now. Concurrent calls for the same generation
// share one request.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	gen, ok := m.generation, m.authenticated
	m.mu.Unlock()
	if !ok {
		return auth.ErrSessionInvalid
	}
	return m.refresh(ctx, gen)
}

// Restore loads a persisted snapshot. Expired snapshots are discarded.
func (m *TokenManager) Restore(ctx context.Context) (bool, error) {
	if m.snapshots == nil {
		return false, nil
	}

	snap, err := m.snapshots.Load()
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	if !m.clock.Now().Before(snap.ExpiresAt) || snap.AccessToken == "" || snap.SessionToken == "" {
		m.logger.Debug("discarding stale session snapshot", "admin_id", snap.AdminID)
		return false, m.snapshots.Delete()
	}

	if m.validator != nil {
		if _, err := m.validator.Validate(ctx, snap.AccessToken, snap.SessionToken); err != nil {
			if auth.IsSessionError(err) {
				m.logger.Debug("server rejected session snapshot", "admin_id", snap.AdminID)
				return false, m.snapshots.Delete()
			}
			return false, err
		}
	}

	if err := m.SetTokens(snap.pair()); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *TokenManager) setLocked(pair *auth.TokenPair) error {
	if pair == nil || pair.AccessToken == "" || pair.SessionToken == "" {
		m.clearLocked()
		return auth.ErrSessionInvalid
	}

	now := m.clock.Now()
	if !now.Before(pair.ExpiresAt) {
		m.clearLocked()
		return auth.ErrSessionInvalid
	}

	m.stopTimerLocked()
	m.generation++
	m.state = stateFromPair(pair)
	m.authenticated = true

	delay := pair.ExpiresAt.Sub(now) - m.buffer
	if delay < 0 {
		delay = 0
	}
	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()
		if err := m.refresh(ctx, gen); err != nil {
			m.logger.Debug("scheduled refresh ended without session", "error", err)
		}
	})

	m.emitter.Enqueue(true)
	return nil
}

func (m *TokenManager) clearLocked() {
	m.stopTimerLocked()
	m.generation++
	wasAuthenticated := m.authenticated
	m.state = AuthState{}
	m.authenticated = false
	if wasAuthenticated {
		m.emitter.Enqueue(false)
	}
}

func (m *TokenManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *TokenManager) refresh(ctx context.Context, gen uint64) error {
	_, err, _ := m.inflight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, m.refreshGeneration(ctx, gen)
	})
	return err
}

func (m *TokenManager) refreshGeneration(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	if gen != m.generation || !m.authenticated {
		m.mu.Unlock()
		return auth.ErrSessionInvalid
	}
	access, session := m.state.AccessToken, m.state.SessionToken
	m.mu.Unlock()

	if m.refresher == nil {
		m.Clear()
		return auth.ErrSessionInvalid
	}

	pair, err := m.refresher.Refresh(ctx, access, session)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding refresh result from a previous session state")
		return auth.ErrSessionInvalid
	}
	if err != nil {
		m.logger.Info("token refresh failed, clearing session", "error", err)
		m.clearLocked()
	} else {
		err = m.setLocked(pair)
	}
	m.persistLocked()
	m.mu.Unlock()

	m.emitter.Flush()
	return err
}

// persistLocked writes under the manager lock so the stored snapshot
// always matches the latest state.
func (m *TokenManager) persistLocked() {
	if m.snapshots == nil {
		return
	}
	var err error
	if m.authenticated {
		err = m.snapshots.Save(snapshotFromState(m.state))
	} else {
		err = m.snapshots.Delete()
	}
	if err != nil {
		m.logger.Warn("session snapshot not persisted", "error", err)
	}
}
