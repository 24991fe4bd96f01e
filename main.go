package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dietTrackerAPI/internal/config"
	"dietTrackerAPI/internal/logging"
	"dietTrackerAPI/internal/store"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dietapi",
	Short: "Diet tracker API",
	Long: `dietapi serves the diet tracker HTTP API: food, water, workout and
quick-add logging, the consecutive-day logging streak, and Clerk user sync.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !config.LoadDotenv() {
			fmt.Fprintln(os.Stderr, "No .env file found")
		}

		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := store.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := backend.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate %s store: %w", cfg.StoreDriver, err)
		}
		logger.Info("migrations applied", zap.String("driver", cfg.StoreDriver))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
