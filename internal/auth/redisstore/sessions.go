// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package redisstore keeps sessions in Redis.
//
// Each session is a hash under <prefix>:session:<key>. Two sorted sets index
// the sessions by last-seen and creation time so expired sessions can be
// swept without scanning the keyspace. The sweep script derives session keys
// from index members, so the repository targets a single Redis node.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

// DefaultPrefix namespaces every key the repository writes.
const DefaultPrefix = "authcore"

const (
	fieldUsername = "username"
	fieldCreated  = "created_at"
	fieldLastSeen = "last_seen_at"
)

// KEYS[1] session hash, KEYS[2] last-seen index. ARGV: timestamp, score, member.
const touchScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'last_seen_at', ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`

// KEYS[1] session hash. ARGV[1] new username.
const renameScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'username', ARGV[1])
return 1
`

// KEYS[1] session hash, KEYS[2] last-seen index, KEYS[3] created index.
const deleteScript = `
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`

// KEYS[1] last-seen index, KEYS[2] created index.
// ARGV: idle cutoff score, absolute cutoff score, session key prefix.
const sweepScript = `
local removed = 0
local done = {}
local function sweep(index, cutoff)
	for _, member in ipairs(redis.call('ZRANGEBYSCORE', index, '-inf', '(' .. cutoff)) do
		if not done[member] then
			done[member] = true
			removed = removed + redis.call('DEL', ARGV[3] .. member)
			redis.call('ZREM', KEYS[1], member)
			redis.call('ZREM', KEYS[2], member)
		end
	end
end
sweep(KEYS[1], ARGV[1])
sweep(KEYS[2], ARGV[2])
return removed
`

var (
	touchLua  = redis.NewScript(touchScript)
	renameLua = redis.NewScript(renameScript)
	deleteLua = redis.NewScript(deleteScript)
	sweepLua  = redis.NewScript(sweepScript)
)

// SessionRepository implements auth.SessionRepository on Redis.
type SessionRepository struct {
	rdb        redis.UniversalClient
	prefix     string
	ttl        time.Duration
	seenKey    string
	createdKey string
}

// NewSessionRepository creates a repository. Session hashes expire ttl after
// they are written; ttl should equal the absolute session lifetime. A zero
// ttl leaves expiry to DeleteExpired. An empty prefix selects DefaultPrefix.
func NewSessionRepository(rdb redis.UniversalClient, prefix string, ttl time.Duration) *SessionRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionRepository{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		seenKey:    prefix + ":sessions:last_seen",
		createdKey: prefix + ":sessions:created",
	}
}

func (r *SessionRepository) sessionKey(key string) string {
	return r.prefix + ":session:" + key
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Upsert writes the session hash, replacing any previous owner.
func (r *SessionRepository) Upsert(ctx context.Context, session *auth.Session) error {
	k := r.sessionKey(session.Key)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			fieldUsername, session.Username,
			fieldCreated, formatTime(session.CreatedAt),
			fieldLastSeen, formatTime(session.LastSeenAt))
		if r.ttl > 0 {
			pipe.Expire(ctx, k, r.ttl)
		}
		pipe.ZAdd(ctx, r.seenKey, redis.Z{Score: score(session.LastSeenAt), Member: session.Key})
		pipe.ZAdd(ctx, r.createdKey, redis.Z{Score: score(session.CreatedAt), Member: session.Key})
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_UPSERT_FAILED").
			With("operation", "upsert session").
			With("backend", "redis").
			Wrap(err)
	}
	return nil
}

// Get returns the session for key.
func (r *SessionRepository) Get(ctx context.Context, key string) (*auth.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.sessionKey(key)).Result()
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			With("backend", "redis").
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreated])
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("field", fieldCreated).Wrap(err)
	}
	lastSeenAt, err := time.Parse(time.RFC3339Nano, fields[fieldLastSeen])
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("field", fieldLastSeen).Wrap(err)
	}
	return &auth.Session{
		Key:        key,
		Username:   fields[fieldUsername],
		CreatedAt:  createdAt,
		LastSeenAt: lastSeenAt,
	}, nil
}

func (r *SessionRepository) runPresent(ctx context.Context, script *redis.Script, code, operation string, keys []string, args ...any) error {
	n, err := script.Run(ctx, r.rdb, keys, args...).Int64()
	if err != nil {
		return oops.Code(code).
			With("operation", operation).
			With("backend", "redis").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Touch sets last_seen_at.
func (r *SessionRepository) Touch(ctx context.Context, key string, at time.Time) error {
	return r.runPresent(ctx, touchLua, "SESSION_TOUCH_FAILED", "touch session",
		[]string{r.sessionKey(key), r.seenKey},
		formatTime(at), strconv.FormatInt(at.UnixMilli(), 10), key)
}

// UpdateUsername rewrites the owner in place, keeping the remaining TTL.
func (r *SessionRepository) UpdateUsername(ctx context.Context, key, username string) error {
	return r.runPresent(ctx, renameLua, "SESSION_RENAME_FAILED", "update session username",
		[]string{r.sessionKey(key)}, username)
}

// Delete removes the session. Absent keys are not an error.
func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	err := deleteLua.Run(ctx, r.rdb, []string{r.sessionKey(key), r.seenKey, r.createdKey}, key).Err()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			With("backend", "redis").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions past either cutoff. Hashes that Redis
// already expired are dropped from the indexes but not counted.
func (r *SessionRepository) DeleteExpired(ctx context.Context, idleCutoff, absoluteCutoff time.Time) (int64, error) {
	n, err := sweepLua.Run(ctx, r.rdb, []string{r.seenKey, r.createdKey},
		strconv.FormatInt(idleCutoff.UnixMilli(), 10),
		strconv.FormatInt(absoluteCutoff.UnixMilli(), 10),
		r.prefix+":session:").Int64()
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			With("backend", "redis").
			Wrap(err)
	}
	return n, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
