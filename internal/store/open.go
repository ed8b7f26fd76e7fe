package store

import (
	"context"
	"fmt"
	"strings"
)

// Open picks a backend from the driver name ("sqlite" or "postgres"),
// connects and migrates.
func Open(ctx context.Context, driver, dsn string) (DB, error) {
	var (
		db  DB
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		db, err = NewSQLiteDB(dsn)
	case "postgres", "postgresql", "pgx":
		db, err = NewPostgresDB(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
