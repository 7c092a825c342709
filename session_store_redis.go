package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const revokeAdminScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, hash in ipairs(members) do
  removed = removed + redis.call("DEL", ARGV[1] .. hash)
end
redis.call("DEL", KEYS[1])
return removed
`

var revokeAdminLua = redis.NewScript(revokeAdminScript)

// RedisSessionStore keeps session records as JSON values that expire with
// the session. Revocation deletes the record. A per admin set indexes the
// token hashes for bulk revocation.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore keys everything under prefix
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) sessionKey(tokenHash string) string {
	return s.prefix + "session:" + tokenHash
}

func (s *RedisSessionStore) adminKey(adminID string) string {
	return s.prefix + "admin:" + adminID
}

func (s *RedisSessionStore) Create(ctx context.Context, record *SessionRecord) error {
	ttl := record.ExpiresAt.Sub(record.CreatedAt)
	if ttl <= 0 {
		return errors.New("session already expired", errors.CategoryBadInput)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(record.TokenHash), data, ttl)
		pipe.SAdd(ctx, s.adminKey(record.AdminID), record.TokenHash)
		pipe.Expire(ctx, s.adminKey(record.AdminID), ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create session")
	}
	return nil
}

func (s *RedisSessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	data, err := s.client.Get(ctx, s.sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session")
	}

	record := &SessionRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode session")
	}
	return record, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	record, err := s.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}

	ttl := record.ExpiresAt.Sub(at)
	if ttl <= 0 {
		return ErrSessionNotFound
	}

	record.RefreshedAt = &at
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session")
	}

	ok, err := s.client.SetXX(ctx, s.sessionKey(tokenHash), data, ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to touch session")
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, tokenHash string, _ time.Time) (bool, error) {
	record, err := s.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.sessionKey(tokenHash))
		pipe.SRem(ctx, s.adminKey(record.AdminID), tokenHash)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to revoke session")
	}
	return del.Val() > 0, nil
}

func (s *RedisSessionStore) RevokeAdmin(ctx context.Context, adminID string, _ time.Time) (int, error) {
	n, err := revokeAdminLua.Run(ctx, s.client, []string{s.adminKey(adminID)}, s.prefix+"session:").Int()
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to revoke sessions")
	}
	return n, nil
}
