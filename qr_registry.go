package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// IssuedCredential is returned once at issuance. Only the hash of Payload
// is kept server side.
type IssuedCredential struct {
	AdminID  string
	Payload  string
	PNG      []byte
	IssuedAt time.Time
}

// QRRegistry issues, verifies and revokes the admin QR credential. At most
// one credential per admin is valid, issuing replaces the previous one.
type QRRegistry struct {
	store        CredentialStore
	codec        QRCodec
	clock        clockwork.Clock
	logger       Logger
	metrics      *Metrics
	activitySink ActivitySink
}

var _ SecondFactorVerifier = (*QRRegistry)(nil)

// QRRegistryOption configures a QRRegistry
type QRRegistryOption func(*QRRegistry)

func WithQRCodec(codec QRCodec) QRRegistryOption {
	return func(r *QRRegistry) {
		if codec != nil {
			r.codec = codec
		}
	}
}

func WithQRClock(clock clockwork.Clock) QRRegistryOption {
	return func(r *QRRegistry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithQRLogger(logger Logger) QRRegistryOption {
	return func(r *QRRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithQRMetrics(metrics *Metrics) QRRegistryOption {
	return func(r *QRRegistry) {
		r.metrics = metrics
	}
}

func WithQRActivitySink(sink ActivitySink) QRRegistryOption {
	return func(r *QRRegistry) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// NewQRRegistry creates a registry on store
func NewQRRegistry(store CredentialStore, opts ...QRRegistryOption) *QRRegistry {
	r := &QRRegistry{
		store:        store,
		codec:        NewPNGQRCodec(),
		clock:        clockwork.NewRealClock(),
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Issue generates a new credential for adminID, replacing any prior one.
func (r *QRRegistry) Issue(ctx context.Context, adminID string) (*IssuedCredential, error) {
	if adminID == "" {
		return nil, errors.New("admin id is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	payload, err := NewQRPayload(adminID, r.clock.Now())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate qr payload")
	}
	text := payload.String()

	png, err := r.codec.Encode(text)
	if err != nil {
		return nil, err
	}

	if err := r.store.Put(ctx, &AdminCredential{
		AdminID:    adminID,
		SecretHash: HashSecret(text),
		IssuedAt:   payload.IssuedAt,
	}); err != nil {
		return nil, err
	}

	r.metrics.qrIssued()
	recordActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType:  ActivityEventQRIssued,
		AdminID:    adminID,
		OccurredAt: r.clock.Now(),
	})
	r.logger.Info("qr credential issued", "admin_id", adminID)

	return &IssuedCredential{
		AdminID:  adminID,
		Payload:  text,
		PNG:      png,
		IssuedAt: payload.IssuedAt,
	}, nil
}

// Verify decodes the uploaded image and checks its payload
func (r *QRRegistry) Verify(ctx context.Context, adminID string, image []byte) error {
	if len(image) == 0 {
		return ErrMissingArtifact
	}

	text, err := r.codec.Decode(image)
	if err != nil {
		r.metrics.qrVerified("unreadable")
		r.logger.Info("qr credential unreadable", "admin_id", adminID)
		return ErrCredentialMismatch
	}

	return r.VerifyPayload(ctx, adminID, text)
}

// VerifyPayload checks an already decoded payload. A missing record fails
// closed.
func (r *QRRegistry) VerifyPayload(ctx context.Context, adminID, text string) error {
	payload, err := ParseQRPayload(text)
	if err != nil {
		return r.mismatch(adminID, "malformed")
	}

	if !constantTimeEqual(payload.AdminID, adminID) {
		return r.mismatch(adminID, "wrong_admin")
	}

	credential, err := r.store.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return r.mismatch(adminID, "not_issued")
		}
		r.metrics.qrVerified("error")
		return err
	}

	if !SecretMatches(text, credential.SecretHash) {
		return r.mismatch(adminID, "stale")
	}

	r.metrics.qrVerified("success")
	return nil
}

// Revoke removes the credential so every copy stops verifying
func (r *QRRegistry) Revoke(ctx context.Context, adminID string) error {
	if err := r.store.Delete(ctx, adminID); err != nil {
		return err
	}
	recordActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType:  ActivityEventQRRevoked,
		AdminID:    adminID,
		OccurredAt: r.clock.Now(),
	})
	r.logger.Info("qr credential revoked", "admin_id", adminID)
	return nil
}

func (r *QRRegistry) mismatch(adminID, reason string) error {
	r.metrics.qrVerified(reason)
	r.logger.Info("qr credential rejected", "admin_id", adminID, "reason", reason)
	return ErrCredentialMismatch
}
