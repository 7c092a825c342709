package client

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// FlowState is a step of the login flow
type FlowState string

const (
	StateSelectMode    FlowState = "select_mode"
	StateDevPassword   FlowState = "dev_password"
	StateProdIdentity  FlowState = "prod_identity"
	StateProdQR        FlowState = "prod_qr"
	StateAuthenticated FlowState = "authenticated"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

var flowTransitions = map[FlowState]map[FlowState]struct{}{
	StateSelectMode: {
		StateDevPassword:  {},
		StateProdIdentity: {},
	},
	StateDevPassword: {
		StateAuthenticated: {},
		StateSelectMode:    {},
	},
	StateProdIdentity: {
		StateProdQR:     {},
		StateSelectMode: {},
	},
	StateProdQR: {
		StateAuthenticated: {},
		StateSelectMode:    {},
	},
}

// TransitionHook runs after the flow moved from one state to another
type TransitionHook func(ctx context.Context, from, to FlowState)

// LoginFlow drives the client side of the login steps. Failures keep the
// current step; there is never a fallback to a weaker factor.
type LoginFlow struct {
	mu       sync.Mutex
	state    FlowState
	busy     bool
	lastErr  error
	rejected bool
	// bumped by Reset and Back so late answers are dropped
	epoch        uint64
	assertion    string
	identity     *auth.VerifiedIdentity
	failures     int
	backoffUntil time.Time

	api        API
	tokens     *TokenManager
	gate       *EntryGate
	devEnabled bool
	clock      clockwork.Clock
	logger     auth.Logger
	hooks      []TransitionHook
}

type FlowOption func(*LoginFlow)

// WithDevEnabled allows the password step. It must come from deployment
// configuration.
func WithDevEnabled(enabled bool) FlowOption {
	return func(f *LoginFlow) {
		f.devEnabled = enabled
	}
}

// WithEntryGate requires an open gate to leave select_mode
func WithEntryGate(g *EntryGate) FlowOption {
	return func(f *LoginFlow) {
		f.gate = g
	}
}

func WithFlowClock(clock clockwork.Clock) FlowOption {
	return func(f *LoginFlow) {
		if clock != nil {
			f.clock = clock
		}
	}
}

func WithFlowLogger(logger auth.Logger) FlowOption {
	return func(f *LoginFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithTransitionHook(h TransitionHook) FlowOption {
	return func(f *LoginFlow) {
		if h != nil {
			f.hooks = append(f.hooks, h)
		}
	}
}

func NewLoginFlow(api API, tokens *TokenManager, opts ...FlowOption) *LoginFlow {
	f := &LoginFlow{
		state:  StateSelectMode,
		api:    api,
		tokens: tokens,
		clock:  clockwork.NewRealClock(),
		logger: auth.NewLogrusLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *LoginFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *LoginFlow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Rejected reports whether an identity mismatch ended this attempt
func (f *LoginFlow) Rejected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rejected
}

// Identity returns the identity verified in the first prod step
func (f *LoginFlow) Identity() *auth.VerifiedIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *LoginFlow) SelectDev(ctx context.Context) error {
	if !f.devEnabled {
		return f.fail(auth.ErrDevLoginDisabled)
	}
	return f.selectMode(ctx, StateDevPassword)
}

func (f *LoginFlow) SelectProd(ctx context.Context) error {
	return f.selectMode(ctx, StateProdIdentity)
}

// Back returns to select_mode from any step before authenticated
func (f *LoginFlow) Back(ctx context.Context) error {
	f.mu.Lock()
	from := f.state
	if from == StateSelectMode || from == StateAuthenticated {
		f.lastErr = auth.ErrInvalidTransition
		f.mu.Unlock()
		return auth.ErrInvalidTransition
	}
	f.epoch++
	f.busy = false
	f.assertion = ""
	f.identity = nil
	f.lastErr = nil
	f.state = StateSelectMode
	f.mu.Unlock()

	f.runHooks(ctx, from, StateSelectMode)
	return nil
}

// Reset returns to select_mode and forgets errors, rejection and backoff
func (f *LoginFlow) Reset(ctx context.Context) {
	f.mu.Lock()
	from := f.state
	f.epoch++
	f.state = StateSelectMode
	f.busy = false
	f.lastErr = nil
	f.rejected = false
	f.assertion = ""
	f.identity = nil
	f.failures = 0
	f.backoffUntil = time.Time{}
	f.mu.Unlock()

	if from != StateSelectMode {
		f.runHooks(ctx, from, StateSelectMode)
	}
}

func (f *LoginFlow) SubmitPassword(ctx context.Context, phone, password string) error {
	epoch, err := f.begin(StateDevPassword)
	if err != nil {
		return err
	}

	pair, err := f.api.DevLogin(ctx, phone, password)
	return f.complete(ctx, epoch, StateDevPassword, pair, err)
}

func (f *LoginFlow) SubmitIdentity(ctx context.Context, assertion string) error {
	epoch, err := f.begin(StateProdIdentity)
	if err != nil {
		return err
	}

	identity, err := f.api.VerifyIdentity(ctx, assertion)

	f.mu.Lock()
	if epoch != f.epoch {
		f.mu.Unlock()
		return auth.ErrInvalidTransition
	}
	f.busy = false
	if err != nil {
		f.recordFailureLocked(err)
		f.mu.Unlock()
		return err
	}
	f.assertion = assertion
	f.identity = identity
	f.lastErr = nil
	f.state = StateProdQR
	f.mu.Unlock()

	f.runHooks(ctx, StateProdIdentity, StateProdQR)
	return nil
}

func (f *LoginFlow) SubmitQR(ctx context.Context, image []byte) error {
	epoch, err := f.begin(StateProdQR)
	if err != nil {
		return err
	}

	if len(image) == 0 {
		f.mu.Lock()
		f.busy = false
		f.lastErr = auth.ErrMissingArtifact
		f.mu.Unlock()
		return auth.ErrMissingArtifact
	}

	f.mu.Lock()
	assertion := f.assertion
	f.mu.Unlock()

	pair, err := f.api.VerifyAdminQR(ctx, assertion, image)
	return f.complete(ctx, epoch, StateProdQR, pair, err)
}

func (f *LoginFlow) selectMode(ctx context.Context, to FlowState) error {
	if f.gate != nil {
		if err := f.gate.CheckGrant(); err != nil {
			return f.fail(err)
		}
	}

	f.mu.Lock()
	from := f.state
	if !canTransition(from, to) {
		f.lastErr = auth.ErrInvalidTransition
		f.mu.Unlock()
		return auth.ErrInvalidTransition
	}
	f.state = to
	f.lastErr = nil
	f.mu.Unlock()

	f.runHooks(ctx, from, to)
	return nil
}

// begin checks that a submission is allowed in step and marks the flow busy
func (f *LoginFlow) begin(step FlowState) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != step {
		f.lastErr = auth.ErrInvalidTransition
		return 0, auth.ErrInvalidTransition
	}
	if f.busy {
		return 0, auth.ErrFlowBusy
	}
	if f.rejected && step != StateDevPassword {
		f.lastErr = auth.ErrIdentityMismatch
		return 0, auth.ErrIdentityMismatch
	}
	if f.clock.Now().Before(f.backoffUntil) {
		f.lastErr = auth.ErrTooManyAttempts
		return 0, auth.ErrTooManyAttempts
	}

	f.busy = true
	return f.epoch, nil
}

func (f *LoginFlow) complete(ctx context.Context, epoch uint64, step FlowState, pair *auth.TokenPair, err error) error {
	f.mu.Lock()
	if epoch != f.epoch {
		f.mu.Unlock()
		f.logger.Debug("dropping login answer for an abandoned step", "step", step)
		return auth.ErrInvalidTransition
	}
	f.busy = false
	if err != nil {
		f.recordFailureLocked(err)
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	if f.tokens != nil {
		if err := f.tokens.SetTokens(pair); err != nil {
			return f.fail(err)
		}
	}

	f.mu.Lock()
	if epoch != f.epoch {
		f.mu.Unlock()
		return auth.ErrInvalidTransition
	}
	f.state = StateAuthenticated
	f.lastErr = nil
	f.failures = 0
	f.backoffUntil = time.Time{}
	f.assertion = ""
	f.mu.Unlock()

	if f.gate != nil {
		f.gate.Revoke()
	}

	f.runHooks(ctx, step, StateAuthenticated)
	return nil
}

func (f *LoginFlow) recordFailureLocked(err error) {
	f.lastErr = err

	switch {
	case errors.Is(err, auth.ErrIdentityMismatch):
		f.rejected = true
	case errors.Is(err, auth.ErrCredentialMismatch):
		f.failures++
		f.backoffUntil = f.clock.Now().Add(backoffFor(f.failures))
	}
}

func (f *LoginFlow) fail(err error) error {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
	return err
}

func (f *LoginFlow) runHooks(ctx context.Context, from, to FlowState) {
	for _, h := range f.hooks {
		h(ctx, from, to)
	}
}

func canTransition(from, to FlowState) bool {
	_, ok := flowTransitions[from][to]
	return ok
}

func backoffFor(failures int) time.Duration {
	d := initialBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
