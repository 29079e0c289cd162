// Package sqlstore implements the Store on database/sql, backed by PostgreSQL through the pgx
// stdlib driver or by an embedded SQLite database through modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jrsteele09/fittrack-server/internal/config"
	"github.com/jrsteele09/fittrack-server/internal/utils"
	"github.com/jrsteele09/fittrack-server/store"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dialect struct {
	driver        string
	goose         string
	migrationsDir string
}

var numberedParam = regexp.MustCompile(`\$(\d+)`)

// bind rewrites $n placeholders into the dialect's form
func (d dialect) bind(query string) string {
	if d.driver == config.DriverSQLite {
		return numberedParam.ReplaceAllString(query, "?$1")
	}
	return query
}

// forUpdate appends a row lock for reads made inside a transaction where the dialect has one.
// SQLite serializes writers so it needs none.
func (d dialect) forUpdate(query string, inTx bool) string {
	if inTx && d.driver == config.DriverPostgres {
		return query + " FOR UPDATE"
	}
	return query
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return dialect{driver: driver, goose: "postgres", migrationsDir: "migrations/postgres"}, nil
	case config.DriverSQLite:
		return dialect{driver: driver, goose: "sqlite3", migrationsDir: "migrations/sqlite"}, nil
	}
	return dialect{}, fmt.Errorf("[sqlstore] unsupported driver %q", driver)
}

type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle. driver is one of config.DriverPostgres or config.DriverSQLite.
func New(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Open connects, verifies the connection and applies pending migrations
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.Open] sql.Open: %w", err)
	}
	if d.driver == config.DriverSQLite {
		// one writer at a time, and a single connection keeps :memory: databases alive
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqlstore.Open] ping: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// gooseUpContext is a seam for testing goose.UpContext
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(s.dialect.goose); err != nil {
		return fmt.Errorf("[sqlstore.Migrate] goose.SetDialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, s.dialect.migrationsDir); err != nil {
		return fmt.Errorf("[sqlstore.Migrate] goose.Up: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Repos() store.Repos {
	return s.repos(s.db, false)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repos) error) error {
	return withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, s.repos(tx, true))
	})
}

func (s *Store) repos(db DBTX, inTx bool) store.Repos {
	return store.Repos{
		Users:    &userRepo{db: db, d: s.dialect, inTx: inTx},
		Sessions: &sessionRepo{db: db, d: s.dialect},
		Audit:    &auditRepo{db: db, d: s.dialect},
	}
}

// withTx begins a transaction, runs fn with it, then commits on success or rolls back on
// error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("[sqlstore.withTx] begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("[sqlstore.withTx] commit: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}

// isUniqueViolation recognizes duplicate key errors from either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return utils.Ptr(t.Time.UTC())
}

// gooseLogger routes migration output through zerolog
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.Fatal().Msgf(format, v...)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.Info().Str("component", "migrations").Msgf(format, v...)
}
