package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file and env leave a value unset.
const (
	defaultPresenceStaleness = 30 * time.Minute
	defaultPresenceCron      = "*/5 * * * *" // every five minutes
	defaultInviteTTL         = 7 * 24 * time.Hour
	defaultInviteCron        = "0 * * * *" // hourly
	defaultQueueCapacity     = 1024
	defaultSubscriberBuffer  = 128
	defaultMaxPooledBuffer   = 1 * 1024 * 1024 // 1 MiB
	defaultMaxContentBytes   = 64 * 1024
	defaultMaxAttachments    = 8
	defaultPageSize          = 50
	defaultMaxPageSize       = 200
	defaultCacheTTL          = 30 * time.Second
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.BackendKeys == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetSigningKeys returns a copy of configured signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetJWTSecret returns the configured bearer-token secret, empty when
// JWT auth is not configured.
func GetJWTSecret() (secret, issuer string) {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return "", ""
	}
	return runtimeCfg.JWTSecret, runtimeCfg.JWTIssuer
}

// Addr returns host:port for HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// PresenceStaleness returns the staleness threshold used both as the
// disconnect grace window and the sweep cutoff.
func (c *Config) PresenceStaleness() time.Duration {
	if d := c.Presence.Staleness.Duration(); d > 0 {
		return d
	}
	return defaultPresenceStaleness
}

// PresenceSweepCron returns the cron expression for the staleness sweep.
func (c *Config) PresenceSweepCron() string {
	if c.Presence.SweepCron != "" {
		return c.Presence.SweepCron
	}
	return defaultPresenceCron
}

// InviteTTL returns the default invitation lifetime.
func (c *Config) InviteTTL() time.Duration {
	if d := c.Invites.DefaultTTL.Duration(); d > 0 {
		return d
	}
	return defaultInviteTTL
}

// InviteSweepCron returns the cron expression for the invite expiry sweep.
func (c *Config) InviteSweepCron() string {
	if c.Invites.SweepCron != "" {
		return c.Invites.SweepCron
	}
	return defaultInviteCron
}

// QueueCapacity returns the event queue depth.
func (c *Config) QueueCapacity() int {
	if c.Events.QueueCapacity > 0 {
		return c.Events.QueueCapacity
	}
	return defaultQueueCapacity
}

// SubscriberBuffer returns the per-subscriber channel depth.
func (c *Config) SubscriberBuffer() int {
	if c.Events.SubscriberBuffer > 0 {
		return c.Events.SubscriberBuffer
	}
	return defaultSubscriberBuffer
}

// MaxPooledBufferBytes caps the size of event buffers returned to the pool.
func (c *Config) MaxPooledBufferBytes() int64 {
	if v := c.Events.MaxPooledBufferBytes.Int64(); v > 0 {
		return v
	}
	return defaultMaxPooledBuffer
}

// MaxContentBytes returns the message body size limit.
func (c *Config) MaxContentBytes() int {
	if v := c.Limits.MaxContentBytes.Int64(); v > 0 {
		return int(v)
	}
	return defaultMaxContentBytes
}

// MaxAttachments returns the per-message attachment limit.
func (c *Config) MaxAttachments() int {
	if c.Limits.MaxAttachments > 0 {
		return c.Limits.MaxAttachments
	}
	return defaultMaxAttachments
}

// PageSize clamps a requested page size into the configured bounds.
// Zero or negative requests get the default.
func (c *Config) PageSize(requested int) int {
	def := c.Limits.DefaultPageSize
	if def <= 0 {
		def = defaultPageSize
	}
	max := c.Limits.MaxPageSize
	if max <= 0 {
		max = defaultMaxPageSize
	}
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// CacheTTL returns the read-cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	if d := c.Cache.TTL.Duration(); d > 0 {
		return d
	}
	return defaultCacheTTL
}

// CacheEnabled reports whether the redis read cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Redis.Addr != ""
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig applies rate-limit defaults and checks values that
// cannot be defaulted away, such as cron expressions.
func (c *Config) ValidateConfig() error {
	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = 1000
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = 1000
	}
	if !gronx.IsValid(c.PresenceSweepCron()) {
		return fmt.Errorf("invalid presence sweep cron expression: %s", c.PresenceSweepCron())
	}
	if !gronx.IsValid(c.InviteSweepCron()) {
		return fmt.Errorf("invalid invite sweep cron expression: %s", c.InviteSweepCron())
	}
	return nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `PARLOR_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("PARLOR_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
