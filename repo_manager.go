package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	Migrate(ctx context.Context) error
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Credentials() CredentialStore
	Sessions() SessionStore
}

type mngr struct {
	db          *bun.DB
	credentials CredentialStore
	sessions    SessionStore
}

// NewRepositoryManager wires the bun repositories on db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		credentials: NewCredentialsRepository(db),
		sessions:    NewSessionsRepository(db),
	}
}

// OpenSQLite opens dsn with the sqlite shim driver
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (m mngr) Validate() error {
	if m.credentials == nil {
		return errors.New("repository credentials should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

// Migrate creates the tables and indexes if they are missing, in a
// single transaction
func (m mngr) Migrate(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		models := []any{
			(*AdminCredential)(nil),
			(*SessionRecord)(nil),
		}
		for _, model := range models {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		_, err := tx.NewCreateIndex().
			Model((*SessionRecord)(nil)).
			Index("admin_sessions_admin_id_idx").
			Column("admin_id").
			IfNotExists().
			Exec(ctx)
		return err
	})
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Credentials() CredentialStore {
	return m.credentials
}

func (m mngr) Sessions() SessionStore {
	return m.sessions
}
