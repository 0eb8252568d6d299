// Package app composes the archive reader stack into an fx application.
package app

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rcoelho/imarchive/internal/archive"
	"github.com/rcoelho/imarchive/internal/bus"
	"github.com/rcoelho/imarchive/internal/config"
	"github.com/rcoelho/imarchive/internal/contacts"
	"github.com/rcoelho/imarchive/internal/logging"
	"github.com/rcoelho/imarchive/internal/paths"
	"github.com/rcoelho/imarchive/internal/pipeline"
)

// Params holds the command-line overrides passed to the fx module.
type Params struct {
	ArchivePath  string // optional override; empty = config or well-known default
	ContactsPath string // optional override; empty = config or default export path
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideArchive,
			provideIdentitySource,
			provideResolver,
			providePipeline,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}
	if p.ArchivePath != "" {
		cfg.ArchivePath = p.ArchivePath
	}
	if p.ContactsPath != "" {
		cfg.ContactsPath = p.ContactsPath
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = paths.DefaultArchivePath()
	}
	if cfg.ContactsPath == "" {
		cfg.ContactsPath = paths.DefaultContactsPath()
	}
	return cfg, nil
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(paths.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideArchive(cfg *config.Config, logger *zap.Logger) (*archive.DB, error) {
	db, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return nil, err
	}
	logger.Info("archive opened", zap.String("path", cfg.ArchivePath))
	return db, nil
}

func provideIdentitySource(cfg *config.Config) contacts.Source {
	return contacts.NewFileSource(cfg.ContactsPath)
}

func provideResolver(source contacts.Source, logger *zap.Logger) *contacts.Resolver {
	return contacts.NewResolver(source, logger)
}

func providePipeline(db *archive.DB, resolver *contacts.Resolver, cfg *config.Config, logger *zap.Logger) *pipeline.Pipeline {
	return pipeline.New(db, resolver, cfg, logger)
}

func registerLifecycle(lc fx.Lifecycle, db *archive.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("archive reader ready")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
