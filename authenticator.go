package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// Auther runs the server half of the verification protocol. Dev mode
// accepts the shared phone and password. Prod mode requires a provider
// assertion for the authorized contact followed by the admin QR credential.
type Auther struct {
	cfg          Config
	sessions     SessionManager
	verifier     CredentialVerifier
	secondFactor SecondFactorVerifier
	contact      *ContactMatcher
	devPhone     string
	passwords    PasswordAuthenticator
	limiter      *AttemptLimiter
	ledger       *AssertionLedger
	clock        clockwork.Clock
	logger       Logger
	metrics      *Metrics
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(cfg Config, sessions SessionManager) (*Auther, error) {
	a := &Auther{
		cfg:          cfg,
		sessions:     sessions,
		passwords:    BcryptPasswords{},
		limiter:      NewAttemptLimiter(5, 5),
		ledger:       NewAssertionLedger(1024, 2*time.Hour),
		clock:        clockwork.NewRealClock(),
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
	}

	if contact := cfg.GetAuthorizedContact(); contact != "" {
		matcher, err := NewContactMatcher(contact, cfg.GetDefaultRegion())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "authorized contact is invalid")
		}
		a.contact = matcher
	}

	if phone := cfg.GetDevPhone(); phone != "" {
		normalized, err := NormalizePhone(phone, cfg.GetDefaultRegion())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "dev phone is invalid")
		}
		a.devPhone = normalized
	}

	return a, nil
}

func (s *Auther) WithCredentialVerifier(v CredentialVerifier) *Auther {
	s.verifier = v
	return s
}

func (s *Auther) WithSecondFactor(v SecondFactorVerifier) *Auther {
	s.secondFactor = v
	return s
}

func (s *Auther) WithPasswordAuthenticator(p PasswordAuthenticator) *Auther {
	if p != nil {
		s.passwords = p
	}
	return s
}

func (s *Auther) WithAttemptLimiter(l *AttemptLimiter) *Auther {
	s.limiter = l
	return s
}

func (s *Auther) WithAssertionLedger(l *AssertionLedger) *Auther {
	if l != nil {
		s.ledger = l
	}
	return s
}

func (s *Auther) WithClock(clock clockwork.Clock) *Auther {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Auther) WithMetrics(metrics *Metrics) *Auther {
	s.metrics = metrics
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Validate checks that the collaborators required by the mode are set
func (s *Auther) Validate() error {
	if s.sessions == nil {
		return errors.New("session manager is required", errors.CategoryInternal)
	}
	switch s.cfg.GetMode() {
	case ModeDev:
		if s.devPhone == "" || s.cfg.GetDevPasswordHash() == "" {
			return errors.New("dev mode requires a phone and password hash", errors.CategoryInternal)
		}
	case ModeProd:
		if s.contact == nil {
			return errors.New("prod mode requires an authorized contact", errors.CategoryInternal)
		}
		if s.verifier == nil {
			return errors.New("prod mode requires a credential verifier", errors.CategoryInternal)
		}
		if s.secondFactor == nil {
			return errors.New("prod mode requires a second factor", errors.CategoryInternal)
		}
	default:
		return errors.New("unknown mode", errors.CategoryInternal)
	}
	return nil
}

// DevLogin checks the shared phone and password. It is only reachable in
// dev mode and never in binaries built with the prodonly tag.
func (s *Auther) DevLogin(ctx context.Context, phone, password string) (*TokenPair, error) {
	if !DevLoginCompiledIn || s.cfg.GetMode() != ModeDev {
		s.metrics.login(ModeDev, "disabled")
		return nil, ErrDevLoginDisabled
	}

	normalized, err := NormalizePhone(phone, s.cfg.GetDefaultRegion())
	key := "dev:" + normalized
	if err != nil {
		key = "dev:" + phone
	}

	if !s.limiter.Allow(key) {
		s.metrics.login(ModeDev, "throttled")
		s.logger.Warn("dev login throttled")
		return nil, ErrTooManyAttempts
	}

	phoneOK := err == nil && s.devPhone != "" && constantTimeEqual(normalized, s.devPhone)
	// bcrypt runs even for a wrong phone so both failures cost the same
	pwErr := s.passwords.ComparePasswordAndHash(password, s.cfg.GetDevPasswordHash())

	if !phoneOK || pwErr != nil {
		s.metrics.login(ModeDev, "credential_mismatch")
		s.emit(ctx, ActivityEventLoginFailure, ModeDev, "", map[string]any{"reason": "credential_mismatch"})
		return nil, ErrCredentialMismatch
	}

	s.limiter.Reset(key)
	return s.issue(ctx, SessionSubject{AdminID: s.cfg.GetAdminID(), Contact: normalized}, ModeDev)
}

// CheckIdentity is the first prod step. An identity that is not the
// authorized administrator never reaches the QR step.
func (s *Auther) CheckIdentity(ctx context.Context, assertion string) (*VerifiedIdentity, error) {
	identity, err := s.verifyAuthorized(ctx, assertion)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, ActivityEventIdentityVerified, ModeProd, s.cfg.GetAdminID(), nil)
	return identity, nil
}

// VerifyAdminQR completes a prod login. The assertion is checked again and
// consumed, so each one yields at most one session.
func (s *Auther) VerifyAdminQR(ctx context.Context, assertion string, image []byte) (*TokenPair, error) {
	if s.cfg.GetMode() != ModeProd {
		return nil, ErrDevLoginDisabled
	}
	if len(image) == 0 {
		return nil, ErrMissingArtifact
	}

	identity, err := s.verifyAuthorized(ctx, assertion)
	if err != nil {
		return nil, err
	}

	key := "qr:" + identity.Subject
	if !s.limiter.Allow(key) {
		s.metrics.login(ModeProd, "throttled")
		return nil, ErrTooManyAttempts
	}

	if s.secondFactor == nil {
		return nil, errors.New("second factor is not configured", errors.CategoryInternal)
	}

	adminID := s.cfg.GetAdminID()
	if err := s.secondFactor.Verify(ctx, adminID, image); err != nil {
		if !errors.Is(err, ErrCredentialMismatch) && !errors.Is(err, ErrMissingArtifact) {
			s.logger.Error("qr verification failed", "error", err)
			return nil, err
		}
		s.metrics.login(ModeProd, "credential_mismatch")
		s.emit(ctx, ActivityEventLoginFailure, ModeProd, adminID, map[string]any{"reason": "credential_mismatch"})
		return nil, err
	}

	if !s.ledger.Consume(identity.AssertionID, identity.ExpiresAt) {
		s.metrics.login(ModeProd, "replayed")
		s.emit(ctx, ActivityEventLoginFailure, ModeProd, adminID, map[string]any{"reason": "assertion_replayed"})
		return nil, ErrAssertionReplayed
	}

	s.limiter.Reset(key)
	return s.issue(ctx, SessionSubject{AdminID: adminID, Contact: identity.Contact}, ModeProd)
}

func (s *Auther) verifyAuthorized(ctx context.Context, assertion string) (*VerifiedIdentity, error) {
	if s.cfg.GetMode() != ModeProd {
		return nil, ErrDevLoginDisabled
	}
	if s.verifier == nil || s.contact == nil {
		s.logger.Error("identity verification is not configured")
		return nil, ErrAssertionInvalid
	}

	identity, err := s.verifier.VerifyIdentity(ctx, assertion)
	if err != nil {
		s.metrics.login(ModeProd, "assertion_invalid")
		if errors.Is(err, ErrAssertionInvalid) {
			return nil, ErrAssertionInvalid
		}
		s.logger.Warn("identity verifier failed", "error", err)
		return nil, ErrAssertionInvalid
	}

	matched, ok := s.contact.MatchIdentity(identity)
	if !ok {
		s.metrics.login(ModeProd, "identity_mismatch")
		s.emit(ctx, ActivityEventIdentityRejected, ModeProd, "", map[string]any{
			"subject":      identity.Subject,
			"contact_kind": string(identity.ContactKind),
		})
		return nil, ErrIdentityMismatch
	}
	identity.Contact = matched.Value
	identity.ContactKind = matched.Kind

	return identity, nil
}

func (s *Auther) issue(ctx context.Context, subject SessionSubject, mode SessionMode) (*TokenPair, error) {
	pair, err := s.sessions.Issue(ctx, subject, mode)
	if err != nil {
		s.metrics.login(mode, "error")
		s.logger.Error("session issue failed", "error", err)
		return nil, err
	}
	s.metrics.login(mode, "success")
	s.emit(ctx, ActivityEventLoginSuccess, mode, subject.AdminID, nil)
	return pair, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, mode SessionMode, adminID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: adminID, Type: "admin"},
		AdminID:    adminID,
		Mode:       mode,
		Metadata:   metadata,
		OccurredAt: s.clock.Now(),
	})
}
