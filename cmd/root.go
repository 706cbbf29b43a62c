// Package cmd defines and implements the CLI commands for the voterstat
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/voterstat/internal/app"
	"github.com/JakeFAU/voterstat/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface commands use, so tests can inject their
// own container.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	SetReady(ready bool)
	ServeOperator(ctx context.Context) error
}

// newApp is the application factory. It is a variable so tests can swap it.
var newApp = func(cfg config.Config, runID string) (App, error) {
	return app.NewApp(cfg, runID)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "voterstat",
		Short: "Annotates voter rolls with live registration and ballot status.",
		Long: `voterstat reads voter records as CSV, looks each one up against the
county voter status service, and writes every record it could resolve back out
with its registration status, party, and absentee ballot status appended.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE, so the
		// subcommand's own flags take part in configuration.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			runID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}
			appInstance, err := newApp(cfg, runID.String())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newEnrichCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run context,
// which aborts in-flight lookups and stops admission of new rows.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
