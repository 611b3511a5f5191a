// Package app wires configuration into the services shared by the server and formctl.
package app

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/repository"
	"github.com/pinkalP4120/order-metafields/internal/repository/memory"
	"github.com/pinkalP4120/order-metafields/internal/repository/postgres"
	"github.com/pinkalP4120/order-metafields/internal/service"
	"github.com/pinkalP4120/order-metafields/internal/shopify"
)

type App struct {
	Store       shopify.Store
	Repos       *repository.Repositories
	Metafields  *service.MetafieldService
	Submissions *service.SubmissionService

	db *sql.DB
}

// New connects to Shopify and to Postgres when DB_HOST is set. Migrations run on connect.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := shopify.NewStore(cfg.Shopify, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Store: store}
	if cfg.Database.Enabled() {
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.Repos = postgres.NewRepositories(db, logger)
		logger.Info("Recording submissions in Postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
	} else {
		a.Repos = memory.NewRepositories()
		logger.Warn("DB_HOST not set, submissions are kept in memory only")
	}

	a.Metafields = service.NewMetafieldService(store, cfg.Metafields, logger)
	a.Submissions = service.NewSubmissionService(a.Metafields, a.Repos, logger)
	return a, nil
}

// Close releases the database connection, if any
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
