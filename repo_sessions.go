package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type sessions struct {
	db bun.IDB
}

var (
	_ SessionStore  = (*sessions)(nil)
	_ SessionPruner = (*sessions)(nil)
)

// NewSessionsRepository returns a bun backed SessionStore
func NewSessionsRepository(db bun.IDB) SessionStore {
	return &sessions{db: db}
}

func (r *sessions) Create(ctx context.Context, record *SessionRecord) error {
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create session")
	}
	return nil
}

func (r *sessions) FindByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	record := &SessionRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session")
	}
	return record, nil
}

func (r *sessions) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("refreshed_at = ?", at).
		Where("token_hash = ?", tokenHash).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to touch session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessions) Revoke(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("revoked_at = ?", at).
		Where("token_hash = ?", tokenHash).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to revoke session")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *sessions) RevokeAdmin(ctx context.Context, adminID string, at time.Time) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("revoked_at = ?", at).
		Where("admin_id = ?", adminID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to revoke sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneExpired deletes records that expired or were revoked before the cutoff
func (r *sessions) PruneExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*SessionRecord)(nil)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("expires_at < ?", before).
				WhereOr("revoked_at < ?", before)
		}).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to prune sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
