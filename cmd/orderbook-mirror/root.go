package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/orderbook-mirror/pkg/config"
	"github.com/Sternrassler/orderbook-mirror/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// flagOverrides binds CLI flags onto a loaded config.Config.
type flagOverrides struct {
	port         string
	upstreamURL  string
	ttl          string
	backend      string
	redisURL     string
	staleOnError bool
	logLevel     string
	logPretty    bool
}

func (f *flagOverrides) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.port, "port", "", "listen port (env PORT)")
	flags.StringVar(&f.upstreamURL, "upstream", "", "upstream base URL (env UPSTREAM_BASE_URL)")
	flags.StringVar(&f.ttl, "ttl", "", "cache freshness TTL, e.g. 3s (env CACHE_TTL)")
	flags.StringVar(&f.backend, "cache-backend", "", "cache backend: memory or redis (env CACHE_BACKEND)")
	flags.StringVar(&f.redisURL, "redis-url", "", "redis address (env REDIS_URL)")
	flags.BoolVar(&f.staleOnError, "stale-on-error", false, "serve the last stored snapshot when the upstream fails (env STALE_ON_ERROR)")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.BoolVar(&f.logPretty, "log-pretty", false, "human-readable console logs (env LOG_PRETTY)")
}

// apply overlays flags the user set explicitly onto cfg and revalidates it.
func (f *flagOverrides) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("upstream") {
		cfg.UpstreamBaseURL = f.upstreamURL
	}
	if flags.Changed("ttl") {
		d, err := config.ParseDuration(f.ttl)
		if err != nil {
			return cfg, fmt.Errorf("--ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	if flags.Changed("cache-backend") {
		cfg.CacheBackend = f.backend
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = f.redisURL
	}
	if flags.Changed("stale-on-error") {
		cfg.StaleOnError = f.staleOnError
	}
	if flags.Changed("log-level") {
		level, err := logging.ValidateLevel(f.logLevel)
		if err != nil {
			return cfg, fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = level
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty = f.logPretty
	}
	return cfg, cfg.Validate()
}

func newRootCmd() *cobra.Command {
	overrides := &flagOverrides{}

	// loadConfig reads the environment, applies flags and configures logging.
	loadConfig := func(cmd *cobra.Command) (config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg, err = overrides.apply(cmd, cfg)
		if err != nil {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}

		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.LogLevel
		logCfg.Pretty = cfg.LogPretty
		logging.Setup(logCfg)
		return cfg, nil
	}

	root := &cobra.Command{
		Use:   "orderbook-mirror",
		Short: "Caching reverse proxy for exchange order books.",
		Long: `orderbook-mirror serves GET /api/orderbook/{symbol} by fetching the order book
from the upstream exchange API and caching each snapshot for a short TTL, so
bursts of requests for the same market cost a single upstream call.

Configuration is read from the environment; flags override it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg); err != nil {
				log.Error().Err(err).Msg("Server stopped with error")
				return err
			}
			return nil
		},
	}
	overrides.register(root)

	fetch := &cobra.Command{
		Use:   "fetch <symbol>",
		Short: "Fetch one order book through the cache and print it as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			if err := fetchOnce(cmd.Context(), cfg, args[0], cmd.OutOrStdout()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			return nil
		},
	}
	root.AddCommand(fetch)

	return root
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
