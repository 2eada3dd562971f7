/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/usersvc/pkg/api"
	"github.com/ssargent/usersvc/pkg/config"
	"github.com/ssargent/usersvc/pkg/logging"
	"github.com/ssargent/usersvc/pkg/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the user service",
	Long: `Start the usersvc protocol server.

The users table is created on startup if it does not exist. Flags override
the config file and the environment.

Examples:
  DATABASE_URL=postgres://app@localhost/app?sslmode=disable usersvc serve
  DATABASE_URL=sqlite://./users.db usersvc serve --port 9000 --metrics-addr 127.0.0.1:9090
  usersvc serve --config ./usersvc.yaml --compat legacy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServeFlags(cmd.Flags(), cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg, configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", 8080, "Port to listen on")
	flags.String("bind", "127.0.0.1", "Address to bind server to")
	flags.String("compat", config.CompatStrict, "Routing and status mapping: strict or legacy")
	flags.Int("max-connections", 64, "Connections served concurrently (1 serves one at a time)")
	flags.String("metrics-addr", "", "Address for /metrics and /health (empty disables)")
}

// applyServeFlags copies explicitly set flags over cfg.
func applyServeFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("bind") {
		cfg.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("compat") {
		cfg.Compat, _ = flags.GetString("compat")
	}
	if flags.Changed("max-connections") {
		cfg.Server.MaxConnections, _ = flags.GetInt("max-connections")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if container == nil {
		return errors.New("dependency container not initialized")
	}

	logger, err := logging.NewReloadable(cfg.Logging)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db := st.DB(); db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "usersvc"))
	}
	metrics := api.NewMetrics(reg)

	g, ctx := errgroup.WithContext(ctx)

	starter := container.GetServerFactory().CreateServerStarter()
	g.Go(func() error {
		return starter.StartServer(ctx, st, serverConfig(cfg), metrics, logger)
	})

	if cfg.Metrics.Addr != "" {
		admin := api.NewAdminRouter(st, reg, metrics, api.AdminConfig{AllowedOrigins: cfg.Metrics.AllowedOrigins}, logger)
		g.Go(func() error {
			return api.ServeAdmin(ctx, cfg.Metrics.Addr, admin, logger)
		})
	}

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, reloadLogLevel(logger), func(err error) {
				logger.Warn().Err(err).Str("path", configPath).Msg("config reload failed")
			})
		})
	}

	return g.Wait()
}

// openStore opens the configured store and creates the users table.
func openStore(ctx context.Context, cfg *config.Config) (api.UserStore, error) {
	st, err := container.GetStoreFactory().OpenStore(cfg.Database.URL, poolConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	if err := st.Bootstrap(ctx); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "failed to bootstrap store")
	}
	return st, nil
}

// reloadLogLevel applies the log level of a reloaded config. Other settings
// take effect on restart.
func reloadLogLevel(logger zerolog.Logger) func(*config.Config) {
	return func(c *config.Config) {
		if err := logging.SetGlobalLevel(c.Logging.Level); err != nil {
			logger.Warn().Err(err).Msg("ignoring reloaded log level")
			return
		}
		logger.Info().Str("level", c.Logging.Level).Msg("config reloaded")
	}
}

func poolConfig(cfg *config.Config) store.PoolConfig {
	return store.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
	}
}

func serverConfig(cfg *config.Config) api.ServerConfig {
	return api.ServerConfig{
		Addr:           cfg.Addr(),
		MaxConnections: cfg.Server.MaxConnections,
		BufferSize:     cfg.Server.BufferSize,
		IOTimeout:      cfg.Server.IOTimeout.Std(),
		Legacy:         cfg.Legacy(),
	}
}
