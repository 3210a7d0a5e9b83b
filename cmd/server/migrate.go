package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/xcyber/portal/internal/api"
	"github.com/xcyber/portal/internal/models"
)

// MigrateIfNeeded fills an empty store on first run: the seed dataset, with
// its responses replaced by the JSON response snapshot when one exists.
func MigrateIfNeeded(dst api.Store, seed *models.Seed, snapshotPath string) error {
	ps, err := dst.ListProviders()
	if err != nil {
		return fmt.Errorf("check store: %w", err)
	}
	users, err := dst.ListUsers()
	if err != nil {
		return fmt.Errorf("check store: %w", err)
	}
	if len(ps) > 0 || len(users) > 0 {
		return nil // already populated
	}

	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("check snapshot: %w", err)
		}
	}
	legacy, err := api.NewMemoryStore(seed, snapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	snap := legacy.Snapshot()
	log.Printf("First run detected, loading %d providers, %d users and %d responses...",
		len(snap.Providers), len(snap.Users), len(snap.Responses))
	if err := dst.Init(snap); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	log.Printf("Data migration completed successfully.")
	return nil
}
