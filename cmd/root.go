// Package cmd defines the menusync command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/app"
	"github.com/JakeFAU/dining-menu-sync/internal/config"
	"github.com/JakeFAU/dining-menu-sync/internal/logging"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

// App is what the subcommands need from the wired services. Tests inject a
// fake through newApp.
type App interface {
	Run(ctx context.Context, kind string) (menu.RunReport, error)
	Reset(ctx context.Context, collections []string) (map[string]int, error)
	Show(ctx context.Context, out io.Writer, date string) error
	Ready(ctx context.Context) error
	Close() error
}

type envKeyType struct{}

var envKey envKeyType

// env carries the loaded state from the root hook to the subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	app    App
}

var loadConfig = config.Load

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "menusync",
		Short: "Syncs campus dining menus into the dish database.",
		Long: `menusync pulls dining court menus from the campus menu API, tags
every dish and merges it into the hall and global dish collections. It also
refreshes retail dining locations scraped from the locations directory.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, logging.WithLevel(cfg.Logging.Level))
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger, app: a}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(
		newRunCmd("menus", "Upload today's dining court menus"),
		newRunCmd("history", "Backfill the last few days of dining court menus"),
		newRunCmd("retail", "Refresh retail dining locations from the directory"),
		newResetCmd(),
		newServeCmd(),
		newShowCmd(),
	)
	return cmd
}

func (e *env) close() {
	if err := e.app.Close(); err != nil {
		e.logger.Warn("close services", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// withEnv hands the services built by the root hook to run and shuts them
// down afterwards, whether or not run fails.
func withEnv(run func(cmd *cobra.Command, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		e, ok := cmd.Context().Value(envKey).(*env)
		if !ok || e == nil {
			return fmt.Errorf("services not initialized")
		}
		defer e.close()
		return run(cmd, e)
	}
}

// Execute runs the command line until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
