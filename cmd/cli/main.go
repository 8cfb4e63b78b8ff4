package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/cmd/cli/commands"
	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
	"github.com/jakechorley/attendant-scheduler/pkg/identity"
	"github.com/jakechorley/attendant-scheduler/pkg/postgres"
	"github.com/jakechorley/attendant-scheduler/pkg/utils/logging"
)

var (
	env      string
	callerID string
	app      = &commands.AppContext{}
	closers  []func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "attendants",
		Short: "Attendant scheduler - positions, shifts, oversight, assignments and counts",
		Long:  `A CLI and HTTP server for scheduling event attendants: posts and their shifts, overseer/keyman oversight, assignments and attendance counts.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	_ = rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVar(&callerID, "as", "cli", "Identity id recorded as the actor of CLI changes")

	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.CreatePositionsCmd(app))
	rootCmd.AddCommand(commands.ListPositionsCmd(app))
	rootCmd.AddCommand(commands.ApplyTemplateCmd(app))
	rootCmd.AddCommand(commands.ListTemplatesCmd(app))
	rootCmd.AddCommand(commands.SetOversightCmd(app))
	rootCmd.AddCommand(commands.ClearOversightCmd(app))
	rootCmd.AddCommand(commands.ClearAssignmentsCmd(app))
	rootCmd.AddCommand(commands.ExportPositionsCmd(app))
	rootCmd.AddCommand(commands.ScheduleCountsCmd(app))
	rootCmd.AddCommand(commands.CompareCountsCmd(app))
	rootCmd.AddCommand(commands.RefreshIdentitiesCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up config, logger, store and identity directory
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.Caller = model.Caller{ID: callerID, Role: model.RoleAdmin}

	// Load configuration
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logging.Options{
		Dir:          app.Cfg.Logging.Dir,
		ConsoleLevel: app.Cfg.Logging.ConsoleLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env), zap.String("store", app.Cfg.Store))

	app.Terms, err = config.LoadTemplateConfig(app.Cfg.TemplateConfig)
	if err != nil {
		return fmt.Errorf("failed to load template config: %w", err)
	}

	// Initialize store
	switch app.Cfg.Store {
	case config.StorePostgres:
		app.Logger.Info("Connecting to database")
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pg.Close)
		app.Database = pg
		app.Migrate = pg.RunMigrations
	default:
		app.Logger.Warn("Using in-memory store; data is lost on exit")
		app.Database = db.NewMemDB()
		app.Migrate = nil
	}

	if app.Cfg.Store == config.StoreMemory {
		if _, err := services.SeedSystemTemplates(app.Ctx, app.Database, app.Logger); err != nil {
			return fmt.Errorf("failed to seed templates: %w", err)
		}
	}

	// Initialize identity directory
	var people identity.Directory = identity.NewStoreDirectory(app.Database)
	if app.Cfg.Redis.URL != "" {
		app.Logger.Info("Enabling identity cache")
		client, err := identity.NewRedisClient(app.Cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		people = identity.NewCachedDirectory(client, people, app.Cfg.Redis.IdentityCacheTTL, app.Logger)
	}
	app.People = people

	app.Logger.Debug("Application initialized")
	return nil
}
