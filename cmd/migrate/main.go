// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate            apply all pending migrations
//	migrate -down 1    roll back the last migration
//	migrate -version   print the applied version
package main

import (
	"database/sql"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/config"
	"github.com/iliyamo/dms-api/internal/database"
	"github.com/iliyamo/dms-api/internal/logging"
)

func main() {
	down := flag.Int("down", 0, "number of migrations to roll back")
	version := flag.Bool("version", false, "print the applied migration version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.IsProduction())

	db, err := sql.Open("mysql", database.DSN(cfg.DB))
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	mg, err := database.NewMigrator(db, cfg.DB.Name, log)
	if err != nil {
		log.WithError(err).Fatal("init migrator")
	}
	defer func() { _ = mg.Close() }()

	switch {
	case *version:
		v, dirty, err := mg.Version()
		if err != nil {
			log.WithError(err).Fatal("read version")
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
	case *down > 0:
		if err := mg.Down(*down); err != nil {
			log.WithError(err).Fatal("migrate down")
		}
	default:
		if err := mg.Up(); err != nil {
			log.WithError(err).Fatal("migrate up")
		}
	}
}
