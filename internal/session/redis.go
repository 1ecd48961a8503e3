package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// completeScript transitions a pending session atomically. Returns 1 on
// success, 0 when the session is already terminal, -1 when missing.
var completeScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then
	return -1
end
local sess = cjson.decode(cur)
if sess.status ~= "pending" then
	return 0
end
local ttl = redis.call("PTTL", KEYS[1])
redis.call("SET", KEYS[1], ARGV[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`)

// RedisStore keeps handshake state in Redis, letting expiry ride on key
// TTLs. The pending -> terminal transition runs as a Lua script so two
// completion attempts cannot both win.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, prefix: "login_session:", ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	sess := LoginSession{
		SessionID: id,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) transition(ctx context.Context, sessionID string, next func(LoginSession) LoginSession) error {
	cur, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	updated := next(*cur)
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	res, err := completeScript.Run(ctx, s.client, []string{s.key(sessionID)}, string(data)).Int()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrAlreadyTerminal
	default:
		return ErrNotFound
	}
}

func (s *RedisStore) Complete(ctx context.Context, sessionID, token, username string) error {
	return s.transition(ctx, sessionID, func(sess LoginSession) LoginSession {
		sess.Status = StatusCompleted
		sess.Token = token
		sess.Username = username
		return sess
	})
}

func (s *RedisStore) Fail(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, func(sess LoginSession) LoginSession {
		sess.Status = StatusError
		return sess
	})
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*LoginSession, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess LoginSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}
