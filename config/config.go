// Package config loads the cache layer's configuration from the environment,
// optionally overlaid on a YAML file. All settings are optional with
// documented defaults. Configuration is an explicit value constructed once at
// process start and passed down; nothing in this module reads the environment
// after Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/adapterkit/go-cachekit/cachekey"
	"github.com/adapterkit/go-cachekit/store"
)

// Environment variable names.
const (
	EnvRedisHost           = "CACHE_REDIS_HOST"
	EnvRedisPort           = "CACHE_REDIS_PORT"
	EnvRedisPath           = "CACHE_REDIS_PATH"
	EnvRedisURL            = "CACHE_REDIS_URL"
	EnvRedisPassword       = "CACHE_REDIS_PASSWORD"
	EnvRedisConnectTimeout = "CACHE_REDIS_CONNECT_TIMEOUT"
	EnvRedisMaxCooldown    = "CACHE_REDIS_MAX_COOLDOWN"
	EnvRedisTimeout        = "CACHE_REDIS_TIMEOUT"
	EnvRedisMaxQueued      = "CACHE_REDIS_MAX_QUEUED"
	EnvMaxAge              = "CACHE_MAX_AGE"
	EnvKeyMode             = "CACHE_KEY_MODE"
	EnvKeyIgnoredProps     = "CACHE_KEY_IGNORED_PROPS"
	EnvKeyIncludedProps    = "CACHE_KEY_INCLUDED_PROPS"
)

// Config is the resolved configuration for the cache layer.
type Config struct {
	// Store configures the backing-store client.
	Store store.Config
	// KeyMode selects include/exclude canonicalization.
	KeyMode cachekey.Mode
	// KeyOptions carries the merged field lists for key derivation.
	KeyOptions cachekey.Options
	// InstanceID identifies this process in logs. Generated once per Load.
	InstanceID string
}

// Load resolves configuration from the environment with defaults.
func Load() (Config, error) {
	return applyEnv(defaultConfig())
}

// LoadFile reads a YAML config file, then applies environment overrides on
// top. A missing file is not an error; env and defaults still apply.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		var fc fileConfig
		if err := yaml.Unmarshal(buf, &fc); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg, err = fc.apply(cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return applyEnv(cfg)
}

func defaultConfig() Config {
	return Config{
		Store:      store.DefaultConfig(),
		KeyMode:    cachekey.ModeExclude,
		KeyOptions: cachekey.DefaultOptions(),
	}
}

func applyEnv(cfg Config) (Config, error) {
	cfg.Store.Host = Getenv(EnvRedisHost, cfg.Store.Host)
	cfg.Store.Path = Getenv(EnvRedisPath, cfg.Store.Path)
	cfg.Store.URL = Getenv(EnvRedisURL, cfg.Store.URL)
	cfg.Store.Password = Getenv(EnvRedisPassword, cfg.Store.Password)

	var err error
	if cfg.Store.Port, err = getenvInt(EnvRedisPort, cfg.Store.Port); err != nil {
		return Config{}, err
	}
	if cfg.Store.MaxQueued, err = getenvInt(EnvRedisMaxQueued, cfg.Store.MaxQueued); err != nil {
		return Config{}, err
	}
	if cfg.Store.ConnectTimeout, err = getenvDuration(EnvRedisConnectTimeout, cfg.Store.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Store.MaxCooldown, err = getenvDuration(EnvRedisMaxCooldown, cfg.Store.MaxCooldown); err != nil {
		return Config{}, err
	}
	if cfg.Store.CallTimeout, err = getenvDuration(EnvRedisTimeout, cfg.Store.CallTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Store.DefaultTTL, err = getenvDuration(EnvMaxAge, cfg.Store.DefaultTTL); err != nil {
		return Config{}, err
	}

	if mode := Getenv(EnvKeyMode, ""); mode != "" {
		cfg.KeyMode, err = parseKeyMode(mode)
		if err != nil {
			return Config{}, err
		}
	}
	cfg.KeyOptions = cfg.KeyOptions.Merge(
		getenvList(EnvKeyIncludedProps),
		getenvList(EnvKeyIgnoredProps),
	)

	cfg.InstanceID = uuid.NewString()
	return cfg, nil
}

func parseKeyMode(val string) (cachekey.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "include":
		return cachekey.ModeInclude, nil
	case "exclude":
		return cachekey.ModeExclude, nil
	}
	return 0, fmt.Errorf("config: invalid %s value %q (want include or exclude)", EnvKeyMode, val)
}

// Getenv returns the environment value for key, falling back to def when
// unset or empty.
func Getenv(key string, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	val := Getenv(key, "")
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, val, err)
	}
	return n, nil
}

// getenvDuration accepts either a bare number of milliseconds ("500") or a
// duration expression ("500ms", "1m30s").
func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	val := Getenv(key, "")
	if val == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := str2duration.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, val, err)
	}
	return d, nil
}

func getenvList(key string) []string {
	val := Getenv(key, "")
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
