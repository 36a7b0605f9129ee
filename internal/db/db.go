package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/nutrition"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured backend. sqlite is the embedded file database;
// postgres and mysql are the managed servers.
func Connect(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("db: sqlite path is required")
		}
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: create %s: %w", dir, err)
			}
		}
		dialector = gormsqlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported DB_DRIVER=%q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}

	if driver == "" || driver == "sqlite" {
		// single writer; avoids SQLITE_BUSY under concurrent requests
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&logbook.DailyRecord{},
		&logbook.FoodLog{},
		&logbook.UserConfig{},
		&nutrition.CacheEntry{},
		&chat.Room{},
		&chat.Message{},
		&chat.Job{},
	)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
