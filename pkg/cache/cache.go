// Package cache is an optional redis read cache in front of the hot
// read paths (presence lookups, unread counts). The store stays the
// source of truth: every entry has a TTL and writers invalidate, so a
// cold or dead redis only costs latency, never correctness.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"parlor/pkg/logger"
	"parlor/pkg/models"
)

const (
	presenceKeyFmt = "parlor:presence:%s"
	unreadKeyFmt   = "parlor:unread:%s:%s"

	opTimeout = 250 * time.Millisecond
)

var (
	mu     sync.RWMutex
	client *redis.Client
	ttl    = 30 * time.Second
)

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Init connects to redis and enables the cache. An empty addr leaves
// the cache disabled; that is not an error.
func Init(opts Options) error {
	if opts.Addr == "" {
		return nil
	}
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Ping(ctx).Result(); err != nil {
		c.Close()
		return fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	mu.Lock()
	client = c
	if opts.TTL > 0 {
		ttl = opts.TTL
	}
	mu.Unlock()
	logger.Info("cache_enabled", "addr", opts.Addr)
	return nil
}

// Enabled reports whether the cache is connected.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return client != nil
}

// Close disconnects and disables the cache.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		client.Close()
		client = nil
	}
}

func get() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// GetPresence returns a cached presence row, reporting a miss when the
// cache is disabled, cold or erroring.
func GetPresence(userID string) (*models.Presence, bool) {
	c := get()
	if c == nil {
		return nil, false
	}
	ctx, cancel := opCtx()
	defer cancel()
	v, err := c.Get(ctx, fmt.Sprintf(presenceKeyFmt, userID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("cache_presence_get_failed", "user", userID, "error", err)
		}
		return nil, false
	}
	var p models.Presence
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// SetPresence writes a presence row through to the cache. Failures are
// logged and swallowed.
func SetPresence(p *models.Presence) {
	c := get()
	if c == nil || p == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := c.Set(ctx, fmt.Sprintf(presenceKeyFmt, p.UserID), data, ttl).Err(); err != nil {
		logger.Debug("cache_presence_set_failed", "user", p.UserID, "error", err)
	}
}

// InvalidatePresence drops the cached row after a presence mutation.
func InvalidatePresence(userID string) {
	c := get()
	if c == nil {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := c.Del(ctx, fmt.Sprintf(presenceKeyFmt, userID)).Err(); err != nil {
		logger.Debug("cache_presence_del_failed", "user", userID, "error", err)
	}
}

// GetUnread returns a cached unread count for (room, user).
func GetUnread(roomID, userID string) (int, bool) {
	c := get()
	if c == nil {
		return 0, false
	}
	ctx, cancel := opCtx()
	defer cancel()
	v, err := c.Get(ctx, fmt.Sprintf(unreadKeyFmt, roomID, userID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("cache_unread_get_failed", "room", roomID, "user", userID, "error", err)
		}
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetUnread caches an unread count.
func SetUnread(roomID, userID string, n int) {
	c := get()
	if c == nil {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := c.Set(ctx, fmt.Sprintf(unreadKeyFmt, roomID, userID), strconv.Itoa(n), ttl).Err(); err != nil {
		logger.Debug("cache_unread_set_failed", "room", roomID, "user", userID, "error", err)
	}
}

// InvalidateUnread drops the cached count after a send or read-marker
// move for one member.
func InvalidateUnread(roomID, userID string) {
	c := get()
	if c == nil {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := c.Del(ctx, fmt.Sprintf(unreadKeyFmt, roomID, userID)).Err(); err != nil {
		logger.Debug("cache_unread_del_failed", "room", roomID, "user", userID, "error", err)
	}
}
