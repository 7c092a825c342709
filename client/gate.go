package client

import (
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultGateThreshold        = 10
	DefaultGateCooldown         = 3 * time.Second
	DefaultGrantFreshWindow     = 30 * time.Second
	DefaultGrantPersistedWindow = 5 * time.Minute
)

// Grant records when the hidden entry was opened. Persisted is set on
// grants recovered from a GrantStore.
type Grant struct {
	GrantedAt time.Time `json:"grantedAt"`
	Persisted bool      `json:"-"`
}

// GrantStore keeps a grant across reloads. Load returns nil, nil when
// nothing is stored.
type GrantStore interface {
	Load() (*Grant, error)
	Save(g Grant) error
	Delete() error
}

// EntryGate hides the login surface behind a burst of interactions on an
// otherwise inert element. It is obscurity only; server routes never
// consult it.
type EntryGate struct {
	mu    sync.Mutex
	count int
	last  time.Time
	grant *Grant

	store           GrantStore
	clock           clockwork.Clock
	logger          auth.Logger
	threshold       int
	cooldown        time.Duration
	freshWindow     time.Duration
	persistedWindow time.Duration
}

type GateOption func(*EntryGate)

func WithGateClock(clock clockwork.Clock) GateOption {
	return func(g *EntryGate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func WithGateLogger(logger auth.Logger) GateOption {
	return func(g *EntryGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGrantStore(store GrantStore) GateOption {
	return func(g *EntryGate) {
		g.store = store
	}
}

func WithGateThreshold(n int) GateOption {
	return func(g *EntryGate) {
		if n > 0 {
			g.threshold = n
		}
	}
}

func WithGateCooldown(d time.Duration) GateOption {
	return func(g *EntryGate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithGrantWindows sets how long fresh and recovered grants stay valid
func WithGrantWindows(fresh, persisted time.Duration) GateOption {
	return func(g *EntryGate) {
		if fresh > 0 {
			g.freshWindow = fresh
		}
		if persisted > 0 {
			g.persistedWindow = persisted
		}
	}
}

// NewEntryGate builds a gate and recovers a stored grant, if any
func NewEntryGate(opts ...GateOption) *EntryGate {
	g := &EntryGate{
		clock:           clockwork.NewRealClock(),
		logger:          auth.NewLogrusLogger(nil),
		threshold:       DefaultGateThreshold,
		cooldown:        DefaultGateCooldown,
		freshWindow:     DefaultGrantFreshWindow,
		persistedWindow: DefaultGrantPersistedWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.store != nil {
		stored, err := g.store.Load()
		if err != nil {
			g.logger.Warn("entry grant not recovered", "error", err)
		} else if stored != nil {
			g.grant = &Grant{GrantedAt: stored.GrantedAt, Persisted: true}
		}
	}
	return g
}

// RegisterInteraction counts one interaction and reports whether it
// opened the gate. A pause longer than the cooldown starts the count over.
func (g *EntryGate) RegisterInteraction() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if g.count > 0 && now.Sub(g.last) > g.cooldown {
		g.count = 0
	}
	g.count++
	g.last = now

	if g.count < g.threshold {
		return false
	}

	g.count = 0
	g.grant = &Grant{GrantedAt: now}
	if g.store != nil {
		if err := g.store.Save(*g.grant); err != nil {
			g.logger.Warn("entry grant not persisted", "error", err)
		}
	}
	return true
}

// CheckGrant returns auth.ErrGrantExpired unless a grant is inside its
// window. Stale grants, and grants dated in the future, are dropped from
// memory and from the store.
func (g *EntryGate) CheckGrant() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.grant == nil {
		return auth.ErrGrantExpired
	}

	window := g.freshWindow
	if g.grant.Persisted {
		window = g.persistedWindow
	}

	now := g.clock.Now()
	if g.grant.GrantedAt.After(now) || now.Sub(g.grant.GrantedAt) > window {
		g.dropLocked()
		return auth.ErrGrantExpired
	}
	return nil
}

// Revoke closes the gate
func (g *EntryGate) Revoke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
	g.dropLocked()
}

func (g *EntryGate) dropLocked() {
	g.grant = nil
	if g.store == nil {
		return
	}
	if err := g.store.Delete(); err != nil {
		g.logger.Warn("entry grant not deleted", "error", err)
	}
}

type MemoryGrantStore struct {
	mu    sync.Mutex
	grant *Grant
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{}
}

func (m *MemoryGrantStore) Load() (*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grant == nil {
		return nil, nil
	}
	cp := *m.grant
	return &cp, nil
}

func (m *MemoryGrantStore) Save(g Grant) error {
	m.mu.Lock()
	m.grant = &g
	m.mu.Unlock()
	return nil
}

func (m *MemoryGrantStore) Delete() error {
	m.mu.Lock()
	m.grant = nil
	m.mu.Unlock()
	return nil
}

// FileGrantStore keeps the grant timestamp in a JSON file
type FileGrantStore struct {
	mu   sync.Mutex
	path string
}

func NewFileGrantStore(path string) *FileGrantStore {
	return &FileGrantStore{path: path}
}

func (f *FileGrantStore) Load() (*Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &Grant{}
	found, err := readJSONFile(f.path, out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

func (f *FileGrantStore) Save(g Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSONFile(f.path, g)
}

func (f *FileGrantStore) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeFile(f.path)
}
