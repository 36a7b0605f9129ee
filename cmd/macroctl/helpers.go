package main

import (
	"strings"

	"github.com/suPer8Hu/macrolog/internal/app"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/db"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

// withLogbook opens and migrates the database selected by env and flags.
func withLogbook(run func(*logbook.Service) error) error {
	cfg := config.Load()
	if d := strings.ToLower(strings.TrimSpace(dbDriver)); d != "" {
		cfg.DBDriver = d
	}
	if dbDSN != "" {
		cfg.DBDSN = dbDSN
	}

	gdb, st, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	return run(logbook.NewService(logbook.NewRepo(st)))
}
