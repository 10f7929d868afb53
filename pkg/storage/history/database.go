package history

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"feargreed/config"

	"github.com/lib/pq"
)

// CreateDatabase connects to the postgres server and creates the configured
// database if it doesn't exist. Non-postgres stores are left alone.
func CreateDatabase(cfg config.StoreConfig, env string) error {
	driver, err := cfg.Driver()
	if err != nil {
		return err
	}
	if driver != "postgres" {
		return nil
	}

	dsn, err := cfg.DSN(env)
	if err != nil {
		return err
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return nil
	}

	// Connect to the default 'postgres' DB
	u.Path = "/postgres"
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRow(query, dbName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return nil
	}

	if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}

	return nil
}
