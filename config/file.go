package config

import (
	"strconv"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// fileConfig is the YAML shape of the optional config file. Durations accept
// either milliseconds or duration expressions, matching the env surface.
type fileConfig struct {
	Redis struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		Path           string `yaml:"path"`
		URL            string `yaml:"url"`
		Password       string `yaml:"password"`
		ConnectTimeout string `yaml:"connectTimeout"`
		MaxCooldown    string `yaml:"maxCooldown"`
		Timeout        string `yaml:"timeout"`
		MaxQueued      int    `yaml:"maxQueued"`
	} `yaml:"redis"`
	Cache struct {
		MaxAge string `yaml:"maxAge"`
	} `yaml:"cache"`
	Key struct {
		Mode          string   `yaml:"mode"`
		IgnoredProps  []string `yaml:"ignoredProps"`
		IncludedProps []string `yaml:"includedProps"`
	} `yaml:"key"`
}

func (fc fileConfig) apply(cfg Config) (Config, error) {
	if fc.Redis.Host != "" {
		cfg.Store.Host = fc.Redis.Host
	}
	if fc.Redis.Port != 0 {
		cfg.Store.Port = fc.Redis.Port
	}
	if fc.Redis.Path != "" {
		cfg.Store.Path = fc.Redis.Path
	}
	if fc.Redis.URL != "" {
		cfg.Store.URL = fc.Redis.URL
	}
	if fc.Redis.Password != "" {
		cfg.Store.Password = fc.Redis.Password
	}
	if fc.Redis.MaxQueued != 0 {
		cfg.Store.MaxQueued = fc.Redis.MaxQueued
	}

	var err error
	if cfg.Store.ConnectTimeout, err = parseFileDuration(fc.Redis.ConnectTimeout, cfg.Store.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Store.MaxCooldown, err = parseFileDuration(fc.Redis.MaxCooldown, cfg.Store.MaxCooldown); err != nil {
		return Config{}, err
	}
	if cfg.Store.CallTimeout, err = parseFileDuration(fc.Redis.Timeout, cfg.Store.CallTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Store.DefaultTTL, err = parseFileDuration(fc.Cache.MaxAge, cfg.Store.DefaultTTL); err != nil {
		return Config{}, err
	}

	if fc.Key.Mode != "" {
		if cfg.KeyMode, err = parseKeyMode(fc.Key.Mode); err != nil {
			return Config{}, err
		}
	}
	cfg.KeyOptions = cfg.KeyOptions.Merge(fc.Key.IncludedProps, fc.Key.IgnoredProps)
	return cfg, nil
}

func parseFileDuration(val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return str2duration.ParseDuration(val)
}
