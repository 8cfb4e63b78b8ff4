package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Terms    *config.TemplateConfig
	Database db.Database
	People   services.IdentityDirectory
	Logger   *zap.Logger
	Ctx      context.Context
	// Caller is the operator identity commands run as
	Caller model.Caller
	// Migrate runs schema migrations; nil for the in-memory store
	Migrate func(ctx context.Context) error
}
