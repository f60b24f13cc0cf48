// Command cachekit is an ops tool for inspecting and manipulating the cache
// layer's backing store: read and write entries, check TTLs, and derive the
// canonical key for a request payload.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adapterkit/go-cachekit/cachekey"
	"github.com/adapterkit/go-cachekit/config"
	"github.com/adapterkit/go-cachekit/logger"
	"github.com/adapterkit/go-cachekit/metrics"
	"github.com/adapterkit/go-cachekit/store"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")
	var cfg config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fatal(err)
	}
	return cfg
}

// resolveLevel picks the log level from the flag when it was set, falling
// back to CACHE_LOG_LEVEL otherwise.
func resolveLevel(flagValue string, flagSet bool) logger.LogLevel {
	if !flagSet && os.Getenv("CACHE_LOG_LEVEL") != "" {
		return logger.GetLevelFromEnv()
	}
	switch flagValue {
	case "trace":
		return logger.LevelTrace
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	}
	return logger.LevelInfo
}

func newLogger(cmd *cobra.Command) logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.NewConsoleLogger(resolveLevel(level, cmd.Flags().Changed("log-level")))
}

func newStore(cmd *cobra.Command) store.Store {
	cfg := loadConfig(cmd)
	s, err := store.NewRedis(cfg.Store, newLogger(cmd), metrics.Nop())
	if err != nil {
		fatal(err)
	}
	return s
}

var rootCmd = &cobra.Command{
	Use:   "cachekit",
	Short: "Inspect and manipulate the adapter cache backing store",
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Read a cache entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := newStore(cmd)
		defer s.Close()
		val, found, err := s.Get(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}
		if !found {
			fmt.Println("(not found)")
			return
		}
		fmt.Println(val)
	},
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Write a cache entry",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := newStore(cmd)
		defer s.Close()
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if err := s.Set(context.Background(), args[0], args[1], ttl); err != nil {
			fatal(err)
		}
		fmt.Println("OK")
	},
}

var delCmd = &cobra.Command{
	Use:   "del [key]",
	Short: "Delete a cache entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := newStore(cmd)
		defer s.Close()
		count, err := s.Delete(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("deleted %d\n", count)
	},
}

var ttlCmd = &cobra.Command{
	Use:   "ttl [key]",
	Short: "Show the remaining TTL for a cache entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := newStore(cmd)
		defer s.Close()
		remaining, err := s.TTL(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}
		if remaining < 0 {
			fmt.Println("(no expiry or missing)")
			return
		}
		fmt.Println(remaining.Round(time.Millisecond))
	},
}

var keyCmd = &cobra.Command{
	Use:   "key [payload-json]",
	Short: "Derive the canonical cache key for a request payload",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		var payload any
		if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
			fatal(fmt.Errorf("invalid payload: %w", err))
		}
		key, err := cachekey.Canonical(payload, cfg.KeyMode, cfg.KeyOptions)
		if err != nil {
			fatal(err)
		}
		fmt.Println(key)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration with secrets masked",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		out, err := json.MarshalIndent(struct {
			Store      store.Config
			KeyOptions cachekey.Options
			InstanceID string
		}{cfg.Store.Redacted(), cfg.KeyOptions, cfg.InstanceID}, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
	},
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	setCmd.Flags().Duration("ttl", 0, "entry TTL (0 uses the configured default)")

	rootCmd.AddCommand(getCmd, setCmd, delCmd, ttlCmd, keyCmd, configCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
