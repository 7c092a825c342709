package auth_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepositories(t *testing.T) auth.RepositoryManager {
	t.Helper()

	db, err := auth.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repos := auth.NewRepositoryManager(db)
	require.NoError(t, repos.Validate())
	require.NoError(t, repos.Migrate(context.Background()))
	return repos
}

func newTestRedisStore(t *testing.T) (*auth.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return auth.NewRedisSessionStore(client, "test:"), mr
}
