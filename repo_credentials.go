package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ErrCredentialNotFound no QR credential exists for the admin
var ErrCredentialNotFound = errors.New("credential not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// CredentialStore persists QR credential hashes
type CredentialStore interface {
	Put(ctx context.Context, credential *AdminCredential) error
	Get(ctx context.Context, adminID string) (*AdminCredential, error)
	Delete(ctx context.Context, adminID string) error
}

type credentials struct {
	db bun.IDB
}

var _ CredentialStore = (*credentials)(nil)

// NewCredentialsRepository returns a bun backed CredentialStore
func NewCredentialsRepository(db bun.IDB) CredentialStore {
	return &credentials{db: db}
}

// Put inserts or replaces the credential, the latest write wins.
func (r *credentials) Put(ctx context.Context, credential *AdminCredential) error {
	now := time.Now().UTC()
	credential.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(credential).
		On("CONFLICT (admin_id) DO UPDATE").
		Set("secret_hash = EXCLUDED.secret_hash").
		Set("issued_at = EXCLUDED.issued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store credential")
	}
	return nil
}

func (r *credentials) Get(ctx context.Context, adminID string) (*AdminCredential, error) {
	record := &AdminCredential{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.admin_id = ?", adminID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load credential")
	}
	return record, nil
}

func (r *credentials) Delete(ctx context.Context, adminID string) error {
	_, err := r.db.NewDelete().
		Model((*AdminCredential)(nil)).
		Where("admin_id = ?", adminID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete credential")
	}
	return nil
}
