package punchout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/procurehub/webshop-backend/pkg/redis"
)

// LaunchContext correlates a catalog launch with its return trip. It is
// stored under both a "last launch" key and a window-qualified key so
// the import path can recover the supplier even when the window name is
// no longer known.
type LaunchContext struct {
	CatalogID  string    `json:"catalogId"`
	SupplierID string    `json:"lifnr"`
	WindowName string    `json:"winName"`
	Timestamp  time.Time `json:"ts"`
}

type sessionRedis interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PunchoutLastContextKey(owner string) string
	PunchoutWindowContextKey(owner, window string) string
	PunchoutLastSupplierKey(owner string) string
	PunchoutTabKey(owner string) string
}

// SessionStore keeps launch contexts in ephemeral session storage with
// a TTL, so stale contexts age out on their own.
type SessionStore struct {
	redis sessionRedis
	ttl   time.Duration
}

// NewSessionStore builds the context store.
func NewSessionStore(client *redis.Client, ttl time.Duration) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &SessionStore{redis: client, ttl: ttl}, nil
}

// SaveLaunch records the context under the last-launch and the
// window-qualified keys, plus the bare supplier for quick lookup.
func (s *SessionStore) SaveLaunch(ctx context.Context, owner string, lc LaunchContext) error {
	body, err := json.Marshal(lc)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.redis.PunchoutLastContextKey(owner), body, s.ttl); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.redis.PunchoutWindowContextKey(owner, lc.WindowName), body, s.ttl); err != nil {
		return err
	}
	return s.redis.Set(ctx, s.redis.PunchoutLastSupplierKey(owner), lc.SupplierID, s.ttl)
}

// LastLaunch returns the most recent launch context, or ok=false when
// none is stored.
func (s *SessionStore) LastLaunch(ctx context.Context, owner string) (LaunchContext, bool, error) {
	return s.loadKey(ctx, s.redis.PunchoutLastContextKey(owner))
}

// WindowLaunch returns the context stored for one catalog window.
func (s *SessionStore) WindowLaunch(ctx context.Context, owner, window string) (LaunchContext, bool, error) {
	return s.loadKey(ctx, s.redis.PunchoutWindowContextKey(owner, window))
}

// LastSupplierID returns the supplier of the most recent launch.
func (s *SessionStore) LastSupplierID(ctx context.Context, owner string) (string, error) {
	val, err := s.redis.Get(ctx, s.redis.PunchoutLastSupplierKey(owner))
	if errors.Is(err, redis.ErrNotFound) {
		return "", nil
	}
	return val, err
}

// Clear removes all launch keys for the owner after a completed import.
func (s *SessionStore) Clear(ctx context.Context, owner, window string) error {
	keys := []string{
		s.redis.PunchoutLastContextKey(owner),
		s.redis.PunchoutLastSupplierKey(owner),
	}
	if window != "" {
		keys = append(keys, s.redis.PunchoutWindowContextKey(owner, window))
	}
	return s.redis.Del(ctx, keys...)
}

// TabID returns a stable per-owner tab identity, allocating one on
// first use. Window names derived from it survive relaunches.
func (s *SessionStore) TabID(ctx context.Context, owner string) (string, error) {
	key := s.redis.PunchoutTabKey(owner)
	val, err := s.redis.Get(ctx, key)
	if err == nil && val != "" {
		return val, nil
	}
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		return "", err
	}
	id := fmt.Sprintf("%d", time.Now().UnixMilli())
	if err := s.redis.Set(ctx, key, id, s.ttl); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SessionStore) loadKey(ctx context.Context, key string) (LaunchContext, bool, error) {
	val, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return LaunchContext{}, false, nil
	}
	if err != nil {
		return LaunchContext{}, false, err
	}
	var lc LaunchContext
	if err := json.Unmarshal([]byte(val), &lc); err != nil {
		return LaunchContext{}, false, fmt.Errorf("decoding launch context: %w", err)
	}
	return lc, true, nil
}
