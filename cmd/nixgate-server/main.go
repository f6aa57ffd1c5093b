// nixgate-server exposes a curated Nix/clan/pueue/pexpect tool catalog
// over the Model Context Protocol, with validation, confirmation gates,
// caching, timeouts, and a tamper-evident audit trail around every
// invocation.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/nixgate/nixgate/internal/audit"
	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/config"
	"github.com/nixgate/nixgate/internal/dispatch"
	"github.com/nixgate/nixgate/internal/gateway"
	"github.com/nixgate/nixgate/internal/registry"
	"github.com/nixgate/nixgate/internal/validate"
)

// version is overridden at release build time via
// -ldflags "-X main.version=...".
var version = "0.1.0-dev"

const sweepInterval = 5 * time.Minute

func main() {
	if err := newApp().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "nixgate-server",
		Short:         "Validated, audited MCP gateway for Nix tooling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.AddCommand(
		newServeCommand(&configPath),
		newToolsCommand(&configPath),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nixgate version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		Long: `Serve MCP over stdio.

Expected to be executed by an MCP client, not by a human. Operational
logs and the audit stream go to stderr; stdout carries protocol framing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func newToolsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the effective tool catalog with safety metadata as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTools(cmd, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit trail: JSON lines to stderr or a file, plus ClickHouse when
	// configured. ClickHouse being down degrades to the line sink alone.
	sinks, cleanup, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	auditLog := audit.NewLogger(logger, sinks...)
	defer auditLog.Close()

	reg, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ttls, err := cfg.FamilyTTLs()
	if err != nil {
		return err
	}
	caches := cache.NewSet[command.Output](ttls)

	engine := validate.NewEngine(auditLog, logger)
	dispatcher, err := dispatch.New(dispatch.Config{
		Registry: reg,
		Engine:   engine,
		Runner:   command.NewExecRunner(logger),
		Caches:   caches,
		Audit:    auditLog,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	gw := gateway.New(gateway.Config{
		Dispatcher: dispatcher,
		Registry:   reg,
		Engine:     engine,
		Logger:     logger,
		Version:    version,
	})

	logger.Info("starting nixgate",
		zap.String("version", version),
		zap.Int("tools", reg.Len()),
		zap.String("log_level", cfg.LogLevel),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return gw.Run(ctx)
	})
	eg.Go(func() error {
		sweepLoop(ctx, caches, logger)
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("nixgate stopped")
	return nil
}

// sweepLoop periodically evicts expired cache entries so a long-lived
// gateway does not accumulate stale results.
func sweepLoop(ctx context.Context, caches *cache.Set[command.Output], logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := caches.Sweep(); removed > 0 {
				logger.Debug("cache sweep", zap.Int("removed", removed))
			}
		}
	}
}

// buildSinks assembles the audit sinks from configuration and returns a
// cleanup function for any file handle it opened.
func buildSinks(cfg *config.Config, logger *zap.Logger) ([]audit.Sink, func(), error) {
	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	cleanup := func() {}

	if cfg.AuditPath != "" {
		f, err := os.OpenFile(cfg.AuditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		ws = zapcore.Lock(f)
		cleanup = func() { _ = f.Close() }
	}
	sinks := []audit.Sink{audit.NewZapSink(ws)}

	if cfg.ClickHouseDSN != "" {
		ch, err := audit.NewClickHouseSink(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse audit sink unavailable, continuing without it", zap.Error(err))
		} else {
			sinks = append(sinks, ch)
			logger.Info("clickhouse audit sink connected")
		}
	}
	return sinks, cleanup, nil
}

// buildRegistry folds config-file and Postgres overrides into the
// built-in catalog and freezes it.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*registry.Registry, error) {
	overrides := cfg.Tools

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		dbOverrides, err := registry.LoadOverrides(ctx, db, logger)
		if err != nil {
			return nil, err
		}
		overrides = overrides.Merge(dbOverrides)
	}

	descs := registry.Catalog()
	if !overrides.Empty() {
		var err error
		descs, err = overrides.Apply(descs)
		if err != nil {
			return nil, err
		}
	}
	return registry.New(descs)
}

// toolInfo is one row of the `tools` listing. Callers use the safety
// flags to decide whether an invocation needs user confirmation before
// submission.
type toolInfo struct {
	Name        string `json:"name"`
	Family      string `json:"family"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
	Idempotent  bool   `json:"idempotent"`
	Destructive bool   `json:"destructive"`
	Timeout     string `json:"timeout"`
	CacheFamily string `json:"cache_family,omitempty"`
	CacheTTL    string `json:"cache_ttl,omitempty"`
}

// listTools prints the effective catalog after config-file overrides.
// Postgres overrides apply at serve time only; listing stays offline.
func listTools(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	descs := registry.Catalog()
	if !cfg.Tools.Empty() {
		if descs, err = cfg.Tools.Apply(descs); err != nil {
			return err
		}
	}
	reg, err := registry.New(descs)
	if err != nil {
		return err
	}

	infos := make([]toolInfo, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		flags, _ := reg.Flags(d.Name)
		info := toolInfo{
			Name:        d.Name,
			Family:      d.Family,
			Description: d.Description,
			ReadOnly:    flags.ReadOnly,
			Idempotent:  flags.Idempotent,
			Destructive: flags.Destructive,
			Timeout:     d.Timeout.Duration().String(),
		}
		if d.Cache != nil {
			info.CacheFamily = string(d.Cache.Family)
			info.CacheTTL = d.Cache.TTL.String()
		}
		infos = append(infos, info)
	}

	out, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "json",
		// stdout belongs to the MCP transport; everything else goes to
		// stderr.
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
