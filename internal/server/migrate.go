package server

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies the chat schema migrations. dir is a golang-migrate
// source URL ("file://migrations"); the DSN comes from the validated
// postgres config.
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	if dsn == "" {
		return errors.New("postgres dsn required")
	}

	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	logger := log.New(log.Writer(), "[MIGRATE] ", log.LstdFlags)

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Printf("schema already up to date")
		return nil
	}
	return err
}
