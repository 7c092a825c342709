package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SessionIssuer mints, refreshes, validates and revokes sessions. Every
// rejection is reported as ErrSessionInvalid, the cause is only logged.
type SessionIssuer struct {
	store        SessionStore
	tokens       TokenService
	accessTTL    time.Duration
	sessionTTL   time.Duration
	clock        clockwork.Clock
	logger       Logger
	metrics      *Metrics
	activitySink ActivitySink
}

var _ SessionManager = (*SessionIssuer)(nil)

// NewSessionIssuer creates an issuer storing records in store
func NewSessionIssuer(store SessionStore, tokens TokenService, cfg Config) *SessionIssuer {
	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	sessionTTL := cfg.GetSessionTTL()
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &SessionIssuer{
		store:        store,
		tokens:       tokens,
		accessTTL:    accessTTL,
		sessionTTL:   sessionTTL,
		clock:        clockwork.NewRealClock(),
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
	}
}

func (s *SessionIssuer) WithClock(clock clockwork.Clock) *SessionIssuer {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *SessionIssuer) WithLogger(logger Logger) *SessionIssuer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *SessionIssuer) WithMetrics(metrics *Metrics) *SessionIssuer {
	s.metrics = metrics
	return s
}

func (s *SessionIssuer) WithActivitySink(sink ActivitySink) *SessionIssuer {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Issue creates a session record and the first access token for it
func (s *SessionIssuer) Issue(ctx context.Context, subject SessionSubject, mode SessionMode) (*TokenPair, error) {
	if subject.AdminID == "" {
		return nil, errors.New("session subject is required", errors.CategoryBadInput)
	}
	if !mode.Valid() {
		return nil, errors.New("unknown session mode", errors.CategoryBadInput)
	}

	sessionToken, err := NewSecretToken()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate session token")
	}

	now := s.now()
	record := &SessionRecord{
		ID:        uuid.New(),
		TokenHash: HashSecret(sessionToken),
		AdminID:   subject.AdminID,
		Mode:      mode,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := MintAccessToken(s.tokens, record, AccessTokenOptions{
		TTL:      s.accessTTL,
		IssuedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session issued", "admin_id", record.AdminID, "session_id", record.ID.String(), "mode", string(mode))

	return &TokenPair{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		ExpiresAt:    expiresAt,
		Mode:         mode,
		AdminID:      record.AdminID,
	}, nil
}

// Refresh exchanges a validly signed access token, expired or not, and a
// live session token for a new access token. The session token is kept.
func (s *SessionIssuer) Refresh(ctx context.Context, accessToken, sessionToken string) (*TokenPair, error) {
	claims, err := s.tokens.Inspect(accessToken)
	if err != nil {
		return nil, s.rejectRefresh("access_token", err)
	}

	now := s.now()
	record, err := s.lookup(ctx, sessionToken, claims, now)
	if err != nil {
		return nil, s.rejectRefresh("session", err)
	}

	if err := s.store.Touch(ctx, record.TokenHash, now); err != nil {
		return nil, s.rejectRefresh("touch", err)
	}

	newAccess, expiresAt, err := MintAccessToken(s.tokens, record, AccessTokenOptions{
		TTL:      s.accessTTL,
		IssuedAt: now,
	})
	if err != nil {
		return nil, s.rejectRefresh("mint", err)
	}

	s.metrics.refresh("success")
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  ActivityEventSessionRefreshed,
		AdminID:    record.AdminID,
		Mode:       record.Mode,
		OccurredAt: now,
		Metadata:   map[string]any{"session_id": record.ID.String()},
	})

	return &TokenPair{
		AccessToken:  newAccess,
		SessionToken: sessionToken,
		ExpiresAt:    expiresAt,
		Mode:         record.Mode,
		AdminID:      record.AdminID,
	}, nil
}

// Validate checks both tokens for a protected request
func (s *SessionIssuer) Validate(ctx context.Context, accessToken, sessionToken string) (*Session, error) {
	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		s.logger.Debug("session validation rejected access token", "error", err)
		return nil, ErrSessionInvalid
	}

	record, err := s.lookup(ctx, sessionToken, claims, s.now())
	if err != nil {
		s.logger.Debug("session validation rejected session", "error", err)
		return nil, ErrSessionInvalid
	}

	return &Session{
		ID:               record.ID.String(),
		AdminID:          record.AdminID,
		Mode:             record.Mode,
		IssuedAt:         claims.IssuedAt(),
		ExpiresAt:        claims.Expires(),
		SessionExpiresAt: record.ExpiresAt,
	}, nil
}

// Revoke ends the session behind sessionToken. Unknown tokens are ignored.
func (s *SessionIssuer) Revoke(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	now := s.now()
	revoked, err := s.store.Revoke(ctx, HashSecret(sessionToken), now)
	if err != nil {
		return err
	}
	if revoked {
		s.metrics.revoked("logout", 1)
		recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
			EventType:  ActivityEventSessionRevoked,
			OccurredAt: now,
			Metadata:   map[string]any{"reason": "logout"},
		})
	}
	return nil
}

// RevokeAdmin ends every active session of adminID
func (s *SessionIssuer) RevokeAdmin(ctx context.Context, adminID string) (int, error) {
	now := s.now()
	n, err := s.store.RevokeAdmin(ctx, adminID, now)
	if err != nil {
		return 0, err
	}
	s.metrics.revoked("admin", n)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  ActivityEventSessionRevoked,
		AdminID:    adminID,
		OccurredAt: now,
		Metadata:   map[string]any{"reason": "admin", "count": n},
	})
	s.logger.Info("sessions revoked", "admin_id", adminID, "count", n)
	return n, nil
}

func (s *SessionIssuer) lookup(ctx context.Context, sessionToken string, claims *AccessClaims, now time.Time) (*SessionRecord, error) {
	if sessionToken == "" {
		return nil, ErrSessionNotFound
	}

	record, err := s.store.FindByTokenHash(ctx, HashSecret(sessionToken))
	if err != nil {
		return nil, err
	}

	if !record.Active(now) {
		return nil, ErrSessionNotFound
	}

	if record.ID.String() != claims.SessionID() || !constantTimeEqual(record.AdminID, claims.AdminID()) {
		return nil, errors.New("access token does not belong to session", errors.CategoryAuth)
	}

	return record, nil
}

func (s *SessionIssuer) rejectRefresh(stage string, err error) error {
	s.metrics.refresh("rejected")
	s.logger.Info("session refresh rejected", "stage", stage, "error", err)
	return ErrSessionInvalid
}

func (s *SessionIssuer) now() time.Time {
	return s.clock.Now().UTC()
}

// Prune deletes records that ended more than grace ago. Stores that expire
// records on their own report zero.
func (s *SessionIssuer) Prune(ctx context.Context, grace time.Duration) (int, error) {
	pruner, ok := s.store.(SessionPruner)
	if !ok {
		return 0, nil
	}
	n, err := pruner.PruneExpired(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned sessions", "count", n)
	}
	return n, nil
}
