package db

import (
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nibras/valet/internal/config"
)

// DSN builds a MySQL DSN from database config.
func DSN(cfg config.DatabaseConfig) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.User
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dc.DBName = cfg.Name
	dc.ParseTime = true
	return dc.FormatDSN()
}

// Connect opens a GORM connection for the configured driver. SQLite is the
// default and needs nothing but a file path; MySQL is for deployments that
// share one database across hosts.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(cfg)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}
