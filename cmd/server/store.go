package main

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/xcyber/portal/internal/api"
	"github.com/xcyber/portal/internal/config"
	dbstore "github.com/xcyber/portal/internal/db"
	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
	"github.com/xcyber/portal/internal/session"
)

func loadSeed(cfg config.Config) (*models.Seed, error) {
	if cfg.SeedPath != "" {
		log.Printf("loading seed from %s", cfg.SeedPath)
		return api.LoadSeedFile(cfg.SeedPath, bcrypt.DefaultCost)
	}
	return api.DefaultSeed(bcrypt.DefaultCost)
}

// openStore builds the configured entity store. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, seed *models.Seed) (api.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		path := ""
		if cfg.PersistSnapshot() {
			path = cfg.SnapshotPath
		}
		s, err := api.NewMemoryStore(seed, path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case string(dbstore.DriverSQLite3), string(dbstore.DriverSQLite), string(dbstore.DriverPostgres):
		driver := dbstore.Driver(cfg.StoreDriver)
		sqlDB, err := dbstore.Open(ctx, driver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := dbstore.RunMigrations(sqlDB, driver, cfg.MigrationsDir); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		s, err := dbstore.NewSQLStore(sqlDB, driver)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		if err := MigrateIfNeeded(s, seed, cfg.SnapshotPath); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return s, sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

type closableSessions interface {
	services.SessionStore
	Close() error
}

func openSessions(ctx context.Context, cfg config.Config) (closableSessions, error) {
	switch cfg.SessionDriver {
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionFile), nil
	case "redis":
		return session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.SessionDriver)
	}
}
