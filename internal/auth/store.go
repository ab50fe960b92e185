package auth

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/pkg/redis"
)

const sessionKeyPrefix = "session:"

// Session identifies an authenticated gateway session in a request context.
type Session struct {
	ID     string
	UserID string
}

type sessionCtxKey struct{}

// WithSession returns a context carrying the gateway session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFrom extracts the gateway session from ctx.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(Session)
	return s, ok
}

// TokenStore persists upstream bearer tokens per gateway session: written on
// login, read on every authenticated request, cleared on logout or on any
// upstream 401.
type TokenStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTokenStore creates a Redis-backed token store. ttl should match the
// gateway JWT lifetime.
func NewTokenStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{rdb: rdb, ttl: ttl, logger: logger}
}

// Save stores the upstream token for a session.
func (s *TokenStore) Save(ctx context.Context, sessionID, token string) error {
	return s.rdb.Set(ctx, sessionKeyPrefix+sessionID, token, s.ttl).Err()
}

// Get returns the upstream token for a session. Returns ok=false when the
// session has been invalidated or expired.
func (s *TokenStore) Get(ctx context.Context, sessionID string) (string, bool) {
	token, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if err != goredis.Nil {
			s.logger.Warn("token store get failed", zap.Error(err))
		}
		return "", false
	}
	return token, true
}

// Delete invalidates a session.
func (s *TokenStore) Delete(ctx context.Context, sessionID string) {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		s.logger.Warn("token store delete failed", zap.Error(err), zap.String("session_id", sessionID))
	}
}
