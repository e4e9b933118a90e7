package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// returns derived backend and signing key maps plus whether env vars were used.
func LoadEnvOverrides(cfg *Config) (map[string]struct{}, map[string]struct{}, bool) {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}
	parseDuration := func(v string) Duration {
		if td, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return Duration(td)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return Duration(time.Duration(f * float64(time.Second)))
		}
		return Duration(0)
	}

	if v := os.Getenv("PARLOR_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("PARLOR_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("PARLOR_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("PARLOR_DB_PATH"); v != "" {
		envUsed = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("PARLOR_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("PARLOR_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("PARLOR_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("PARLOR_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("PARLOR_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("PARLOR_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("PARLOR_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Admin = parseList(v)
	}
	if v := os.Getenv("PARLOR_JWT_SECRET"); v != "" {
		envUsed = true
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("PARLOR_JWT_ISSUER"); v != "" {
		envUsed = true
		cfg.Security.JWT.Issuer = v
	}
	if c := os.Getenv("PARLOR_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("PARLOR_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	if v := os.Getenv("PARLOR_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	if v := os.Getenv("PARLOR_LOG_FORMAT"); v != "" {
		envUsed = true
		cfg.Logging.Format = strings.TrimSpace(v)
	}
	if v := os.Getenv("PARLOR_PRESENCE_STALENESS"); v != "" {
		envUsed = true
		cfg.Presence.Staleness = parseDuration(v)
	}
	if v := os.Getenv("PARLOR_PRESENCE_SWEEP_CRON"); v != "" {
		envUsed = true
		cfg.Presence.SweepCron = strings.TrimSpace(v)
	}
	if v := os.Getenv("PARLOR_INVITE_TTL"); v != "" {
		envUsed = true
		cfg.Invites.DefaultTTL = parseDuration(v)
	}
	if v := os.Getenv("PARLOR_INVITE_SWEEP_CRON"); v != "" {
		envUsed = true
		cfg.Invites.SweepCron = strings.TrimSpace(v)
	}
	if v := os.Getenv("PARLOR_EVENTS_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Events.QueueCapacity = n
		}
	}
	if v := os.Getenv("PARLOR_EVENTS_SUBSCRIBER_BUFFER"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Events.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("PARLOR_REDIS_ADDR"); v != "" {
		envUsed = true
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("PARLOR_REDIS_PASSWORD"); v != "" {
		envUsed = true
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("PARLOR_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Cache.Redis.DB = n
		}
	}
	if v := os.Getenv("PARLOR_CACHE_TTL"); v != "" {
		envUsed = true
		cfg.Cache.TTL = parseDuration(v)
	}

	backendKeys := map[string]struct{}{}
	for _, k := range cfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	signingKeys := map[string]struct{}{}
	for k := range backendKeys {
		signingKeys[k] = struct{}{}
	}
	// Signing keys are identical to backend API keys (no separate fallback).
	return backendKeys, signingKeys, envUsed
}

// LoadEffective loads config from the given path (file) and applies environment
// overrides. It returns the effective config, runtime key maps and a boolean
// indicating whether env vars were used.
func LoadEffective(path string) (*Config, map[string]struct{}, map[string]struct{}, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	backendKeys, signingKeys, envUsed := LoadEnvOverrides(cfg)
	if err := cfg.ValidateConfig(); err != nil {
		return nil, nil, nil, envUsed, err
	}
	return cfg, backendKeys, signingKeys, envUsed, nil
}
