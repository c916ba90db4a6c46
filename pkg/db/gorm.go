package db

import (
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type Config struct {
	DSN    string // postgres://... or file:dev.db / sqlite:dev.db
	LogSQL bool
}

// Dialector picks the gorm driver from the DSN scheme.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(SQLiteDSN(strings.TrimPrefix(dsn, "sqlite://")))
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(SQLiteDSN(strings.TrimPrefix(dsn, "sqlite:")))
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		return sqlite.Open(SQLiteDSN(dsn))
	default:
		return postgres.Open(dsn)
	}
}

// SQLiteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection unless asked. An explicit setting in dsn wins.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

func OpenGorm(cfg Config) (*gorm.DB, error) {
	lvl := logger.Silent
	if cfg.LogSQL {
		lvl = logger.Info
	}
	return gorm.Open(Dialector(cfg.DSN), &gorm.Config{
		Logger: logger.New(log.New(log.Writer(), "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		TranslateError: true,
	})
}
