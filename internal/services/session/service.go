package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/infrastructure/redis"
	"github.com/caia/concierge/pkg/logger"
)

const keyPrefix = "concierge:session:"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevoked      = errors.New("session token revoked")
)

// SessionClaims are carried by the bearer token handed out when a
// conversation session is created.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"sid"`
	CustomerID string `json:"cid,omitempty"`
}

type SessionStore interface {
	Set(ctx context.Context, sessionID string, claims *SessionClaims, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*SessionClaims, error)
	Delete(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	redisService *redis.Service
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionClaims
}

type Service struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewService(redisService *redis.Service) *Service {
	var store SessionStore
	if redisService != nil {
		if err := redisService.Ping(context.Background()); err != nil {
			logger.Warn(logger.SERVICE, "Redis unavailable for session tokens, using memory store: %v", err)
			store = newMemoryStore()
		} else {
			store = &RedisStore{redisService: redisService}
		}
	} else {
		store = newMemoryStore()
	}

	return NewServiceWithStore(store)
}

func NewServiceWithStore(store SessionStore) *Service {
	return &Service{store: store, ttl: config.GetSessionTokenTTL(), now: time.Now}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*SessionClaims),
	}
}

func (rs *RedisStore) Set(ctx context.Context, sessionID string, claims *SessionClaims, ttl time.Duration) error {
	data, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return rs.redisService.Set(ctx, keyPrefix+sessionID, string(data), ttl)
}

func (rs *RedisStore) Get(ctx context.Context, sessionID string) (*SessionClaims, error) {
	data, err := rs.redisService.Get(ctx, keyPrefix+sessionID)
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var claims SessionClaims
	if err := json.Unmarshal([]byte(data), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (rs *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return rs.redisService.Delete(ctx, keyPrefix+sessionID)
}

func (ms *MemoryStore) Set(_ context.Context, sessionID string, claims *SessionClaims, _ time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[sessionID] = claims
	return nil
}

func (ms *MemoryStore) Get(_ context.Context, sessionID string) (*SessionClaims, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.sessions[sessionID], nil
}

func (ms *MemoryStore) Delete(_ context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, sessionID)
	return nil
}

// Issue signs a token bound to sessionID and records it in the store.
func (s *Service) Issue(ctx context.Context, sessionID, customerID string) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sessionID,
		},
		SessionID:  sessionID,
		CustomerID: customerID,
	}

	if err := s.store.Set(ctx, sessionID, claims, s.ttl); err != nil {
		return "", fmt.Errorf("store session claims: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(config.GetJWTSecret())
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses a bearer token and checks that its session has not been
// revoked.
func (s *Service) Validate(ctx context.Context, raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.GetJWTSecret(), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	stored, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke invalidates every token issued for sessionID.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}
