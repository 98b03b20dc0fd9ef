// Package pg implements the Postgres-backed Store for every domain
// package (instance, access, tracing, user, sessions). InstanceStore and
// AccessRuleStore sit behind an in-memory read cache guarded by a
// sync.RWMutex; the other stores query the database on every call.
package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens and pings a Postgres connection pool using the pgx
// stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return db, nil
}
