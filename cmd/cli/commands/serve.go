package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/api"
	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr != "" {
				app.Cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("serve command", zap.String("addr", app.Cfg.HTTP.Addr))

			server := api.NewServer(app.Database, app.People, app.Cfg, app.Terms, app.Logger)
			if err := server.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides config)")

	return cmd
}

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Migrate == nil {
				fmt.Println("In-memory store has no schema to migrate.")
				return nil
			}

			ctx, cancel := context.WithCancel(app.Ctx)
			defer cancel()
			if err := app.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			seeded, err := services.SeedSystemTemplates(ctx, app.Database, app.Logger)
			if err != nil {
				return fmt.Errorf("failed to seed templates: %w", err)
			}

			fmt.Printf("\n✓ Migrations applied (%d system template(s) seeded)\n\n", seeded)
			return nil
		},
	}
}
