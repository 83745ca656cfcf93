package rgbdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lightningnetwork/lnd/clock"
	_ "modernc.org/sqlite" // Register the sqlite driver.
)

const (
	// DefaultDatabaseFileName is the default name of the wallet database
	// within the data directory.
	DefaultDatabaseFileName = "rgbwallet.db"

	// defaultBusyTimeout is the time in milliseconds sqlite retries to
	// acquire a lock before giving up.
	defaultBusyTimeout = 5000
)

//go:embed migrations/*.sql
var sqlSchemas embed.FS

// SqliteConfig holds all the config arguments needed to interact with our
// sqlite DB.
type SqliteConfig struct {
	// SkipMigrations if true, then the schema migrations won't be applied
	// on start up.
	SkipMigrations bool `long:"skipmigrations" description:"Skip applying migrations on startup."`

	// DatabaseFileName is the full file path where the database file can
	// be found.
	DatabaseFileName string `long:"dbfile" description:"The full path to the database."`
}

// SqliteStore is a sqlite3 based database for the wallet descriptors and
// their tapret tweaks.
type SqliteStore struct {
	cfg *SqliteConfig

	clock clock.Clock

	db *sql.DB
}

// dsn returns the data source name of the database with the pragmas we rely
// on.
func (c *SqliteConfig) dsn() string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys=on")
	pragmas.Add("_pragma", "journal_mode=WAL")
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout=%d",
		defaultBusyTimeout))
	pragmas.Add("_txlock", "immediate")

	return fmt.Sprintf("file:%s?%s", filepath.ToSlash(c.DatabaseFileName),
		pragmas.Encode())
}

// NewSqliteStore attempts to open a new sqlite database based on the passed
// config.
func NewSqliteStore(cfg *SqliteConfig, clock clock.Clock) (*SqliteStore,
	error) {

	if cfg.DatabaseFileName == "" {
		return nil, fmt.Errorf("database file name must be set")
	}

	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, err
	}

	// Writers are serialized by sqlite anyway.
	db.SetMaxOpenConns(1)

	if !cfg.SkipMigrations {
		if err := applyMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	log.Debugf("Opened sqlite database at %v", cfg.DatabaseFileName)

	return &SqliteStore{
		cfg:   cfg,
		clock: clock,
		db:    db,
	}, nil
}

// applyMigrations brings the schema of the database up to date using the
// embedded migration files.
func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(sqlSchemas, "migrations")
	if err != nil {
		return fmt.Errorf("create source driver: %w", err)
	}

	driver, err := sqlite_migrate.WithInstance(
		db, &sqlite_migrate.Config{},
	)
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("unable to read schema version: %w", err)
	}
	log.Infof("Database schema at version %d (dirty=%v)", version, dirty)

	return nil
}

// ExecTx runs the passed closure in a single database transaction. The
// transaction is committed if the closure returns nil and rolled back
// otherwise.
func (s *SqliteStore) ExecTx(ctx context.Context,
	txBody func(*sql.Tx) error) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MapSQLError(err)
	}

	if err := txBody(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Errorf("Unable to roll back db tx: %v", rollbackErr)
		}

		return MapSQLError(err)
	}

	return MapSQLError(tx.Commit())
}

// Close closes the underlying database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}
