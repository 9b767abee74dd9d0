package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amoylab/skirmish/internal/catalog"
	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"
	"github.com/amoylab/skirmish/internal/registry"
	"github.com/amoylab/skirmish/internal/scenario"
	"github.com/amoylab/skirmish/internal/server"
	"github.com/amoylab/skirmish/internal/session"
	"github.com/amoylab/skirmish/internal/state"
	"github.com/amoylab/skirmish/pkg/helper"
	"github.com/amoylab/skirmish/pkg/logger"
	"github.com/amoylab/skirmish/pkg/metrics"
	"github.com/amoylab/skirmish/pkg/trace"
	"github.com/amoylab/skirmish/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.CommandName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", cnst.CommandName, version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Test the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.LoadConfig[config.BrokerConfig](configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration %s: %w", path, err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration %s is invalid: %w", path, err)
			}
			fmt.Printf("configuration file %s test is successful\n", path)
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "Skirmish session broker",
		Long:  `Skirmish session broker pairs players into game sessions and pushes lifecycle events over WebSocket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.BrokerYaml, "path to configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testCmd)
}

func run() error {
	cfg, cfgPath, err := config.LoadConfig[config.BrokerConfig](configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("starting broker",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx := context.Background()
	if cfg.Tracing.Enabled {
		shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(tctx); err != nil {
				lg.Warn("failed to shutdown tracing", zap.Error(err))
			}
		}()
	}

	pid := helper.NewPIDFile(helper.PIDPath(cfg.PID))
	if err := pid.Write(); err != nil {
		lg.Warn("failed to write PID file", zap.String("path", pid.Path()), zap.Error(err))
	} else {
		defer func() { _ = pid.Remove() }()
	}

	store, err := state.NewStore(lg, &cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	scenarios, err := scenario.NewDBStore(lg, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize scenario store: %w", err)
	}
	defer func() { _ = scenarios.Close() }()

	// the catalog is optional; its endpoints answer 503 without it
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		lg.Warn("failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		cat = nil
	}

	var (
		m        *metrics.Metrics
		observer session.Observer
	)
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		observer = m
	}

	reg := registry.New(lg)
	fanout := session.NewFanout(lg, reg, observer)
	manager := session.NewManager(lg, store, state.NewKeys(cfg.Store.Redis.Prefix), scenarios, fanout, observer)

	gin.SetMode(gin.ReleaseMode)
	srv := server.NewServer(lg, cfg, server.Deps{
		Sessions:  manager,
		Registry:  reg,
		Store:     store,
		Scenarios: scenarios,
		Catalog:   cat,
		Metrics:   m,
	})
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	lg.Info("received signal, shutting down", zap.String("signal", sig.String()))

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
