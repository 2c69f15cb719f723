/*
Package sqlstore provides a database/sql implementation of accounting.TxStore.

PURPOSE:
  Persists settings, speelweken, films, rooms, daily sales and ticket ranges
  in SQLite (embedded, the default) or MySQL (shared server). Both share
  the queries in queries.go; dialect.go holds what differs.

KEY TABLES:
  settings:      `key` -> value
  speelweek:     unique (start_date, end_date)
  films:         unique internal_title
  rooms:         unique name; the unassigned room is the empty name
  daily_sales:   unique (sale_date, film_id, room_id), upserted
  ticket_ranges: primary key (speelweek_id, film_id, room_id), insert-only

TYPES ON DISK:
  Dates:   TEXT "2006-01-02" (SQLite), DATE (MySQL)
  Amounts: TEXT decimal string (SQLite), DECIMAL(12,2) (MySQL)

CONCURRENCY:
  SQLite runs on a single connection, so transactions serialize. MySQL
  transactions lock the settings rows they read (SELECT ... FOR UPDATE) so
  two creators cannot hand out the same counter value; unique keys catch
  the rest and surface as accounting.ErrDuplicate.

USAGE:
  st, err := sqlstore.OpenSQLite("./borderel.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer st.Close()

  engine := accounting.NewEngine(st, nil)

MIGRATION:
  Schema is created on open (CREATE TABLE IF NOT EXISTS).
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/config"
)

// Store implements accounting.TxStore.
type Store struct {
	*queries
	db *sql.DB
}

var _ accounting.TxStore = (*Store)(nil)

// Open opens the store selected by driver (config.DriverSQLite or
// config.DriverMySQL).
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case config.DriverSQLite:
		return OpenSQLite(dsn)
	case config.DriverMySQL:
		return OpenMySQL(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database file. Use ":memory:" for an in-memory
// database.
func OpenSQLite(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open(sqliteDialect.driver, path+sep+"_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" a single database and serializes
	// writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newStore(db, sqliteDialect)
}

// OpenMySQL opens a MySQL database. parseTime and UTC are forced.
func OpenMySQL(dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sql.Open(mysqlDialect.driver, cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return newStore(db, mysqlDialect)
}

func newStore(db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{queries: &queries{q: db, d: d}, db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Dialect returns the SQL dialect name.
func (s *Store) Dialect() string { return s.d.Name }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for _, stmt := range s.d.addColumns {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil && !s.d.isDuplicate(err) {
			return err
		}
	}
	return nil
}

// WithTx executes fn within a database transaction. The transaction is
// rolled back when fn returns an error; that error is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(accounting.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &accounting.StorageError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx, d: s.d, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &accounting.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"ticket_ranges", "daily_sales", "speelweek", "films", "rooms", "settings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &accounting.StorageError{Op: "reset " + table, Err: err}
		}
	}
	return nil
}
