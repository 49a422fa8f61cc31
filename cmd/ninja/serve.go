package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/cli"
	"github.com/xhd193694/ninja/pkg/config"
	"github.com/xhd193694/ninja/pkg/limits"
	"github.com/xhd193694/ninja/pkg/preauth"
	"github.com/xhd193694/ninja/pkg/preauth/ca"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/server"
	"github.com/xhd193694/ninja/pkg/telemetry/health"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/telemetry/metrics"
	"github.com/xhd193694/ninja/pkg/upstream"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The gateway listens on the configured address and proxies traffic to the
upstream platform and web API surfaces, with authentication, admission
control, and streaming re-conversion applied per route.

Examples:
  # Start with the default config file
  ninja serve

  # Start with a custom config
  ninja serve --config /etc/ninja/config.yaml

  # Override the listen address
  ninja serve --listen 0.0.0.0:7999

  # Validate config without starting
  ninja serve --dry-run`,
}

func init() {
	serveCmd.RunE = runServe
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

// loadServeConfig loads the config file, falling back to built-in
// defaults when the default file is simply absent.
func loadServeConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && !serveCmd.Flags().Changed("config") {
		cfg := config.NewDefaultConfig()
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if serveFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:             cfg.Telemetry.Logging.Level,
		Format:            cfg.Telemetry.Logging.Format,
		RedactCredentials: cfg.Telemetry.Logging.RedactCredentials,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	ctx := cli.SetupSignalHandler()

	collector := metrics.NewCollector(nil)

	// Admission control.
	limiter, err := limits.NewManager(limits.Config{
		Enabled:    cfg.RateLimit.Enabled,
		Strategy:   cfg.RateLimit.Strategy,
		Capacity:   cfg.RateLimit.Capacity,
		FillRate:   cfg.RateLimit.FillRate,
		Expired:    cfg.RateLimit.Expired,
		SharedPath: cfg.RateLimit.SharedPath,
	}, logger, limits.NewMetrics(collector.Registry()))
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to build admission layer: %w", err))
	}
	defer limiter.Close()

	// Upstream transport shared by the dispatcher and the identity
	// client.
	client, err := upstream.NewClient(upstream.Config{
		PlatformBaseURL:     cfg.Upstream.PlatformBaseURL,
		WebBaseURL:          cfg.Upstream.WebBaseURL,
		ConnectTimeout:      cfg.Upstream.ConnectTimeout,
		MaxIdleConns:        cfg.Upstream.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Upstream.IdleConnTimeout,
		MaxRetries:          cfg.Upstream.MaxRetries,
		UserAgent:           cfg.Upstream.UserAgent,
	}, logger)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to build upstream client: %w", err))
	}
	defer client.Close()

	// Credential manager over the selected token store.
	store, err := buildTokenStore(cfg, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer store.Close()

	identity, err := auth.NewClient(client, auth.ClientConfig{
		BaseURL:  cfg.Auth.IdentityBaseURL,
		ClientID: cfg.Auth.ClientID,
	}, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	manager, err := auth.NewManager(identity, store, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	if cfg.Auth.PruneSchedule != "" {
		pruner, err := auth.NewPruner(store, cfg.Auth.PruneSchedule, logger)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		pruner.Start()
		defer pruner.Stop()
	}

	keyring, err := auth.LoadKeyring(cfg.Auth.KeyFile, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	if cfg.Auth.WatchKeyFile && cfg.Auth.KeyFile != "" {
		go func() {
			if err := keyring.Watch(ctx); err != nil {
				logger.Warn("Key file watcher stopped", "error", err)
			}
		}()
	}

	// Pre-auth interception proxy, feeding the dispatcher's captured
	// cookie source.
	var cookies proxy.CookieSource = proxy.NoopSource{}
	if cfg.Preauth.Enabled {
		caCert, caKey, err := ca.LoadCA(cfg.Preauth.CACertFile, cfg.Preauth.CAKeyFile)
		if err != nil {
			return cli.NewCommandError("serve", fmt.Errorf("failed to load interception CA: %w", err))
		}
		forge, err := ca.NewForge(caCert, caKey)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		forge.OnForge(collector.Preauth.RecordForge)

		capture := preauth.NewCapture()
		cookies = capture

		interceptor := preauth.New(cfg.Preauth, forge, capture, logger, collector.Preauth)
		go func() {
			if err := interceptor.Run(ctx); err != nil {
				logger.Error("Interception proxy failed", "error", err)
			}
		}()
	}

	dispatcher, err := proxy.NewDispatcher(client, cookies, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	checker := health.New(cfg.Server.ReadTimeout)
	checker.Register("token_store", func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	})

	srv, err := server.New(cfg, server.Dependencies{
		Logger:     logger,
		Metrics:    collector,
		Dispatcher: dispatcher,
		Auth:       manager,
		Keyring:    keyring,
		Limiter:    limiter,
		Health:     checker,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

func buildTokenStore(cfg *config.Config, logger *logging.Logger) (auth.TokenStore, error) {
	switch cfg.Auth.Store {
	case "sqlite":
		return auth.NewSQLiteStore(cfg.Auth.SQLitePath, logger)
	default:
		return auth.NewMemoryStore(), nil
	}
}
