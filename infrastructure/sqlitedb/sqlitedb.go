// Package sqlitedb opens single file sqlite databases for local development
// and tests, and applies the embedded sqlite migrations.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jrazmi/allmyducks/sdk/environment"

	"github.com/mattn/go-sqlite3"
)

// Set of error variables for CRUD operations.
var (
	ErrDBNotFound        = sql.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrDBBusy            = errors.New("database busy")
)

// Options represents the exportable database configuration
type Options struct {
	Path        string        `toml:"path" env:"SQLITE_PATH" default:"allmyducks.db"`
	BusyTimeout time.Duration `toml:"busy_timeout" env:"SQLITE_BUSY_TIMEOUT" default:"5s"`
	MaxConns    int           `toml:"max_conns" env:"SQLITE_MAX_CONNS" default:"4"`
}

type options struct {
	logger *slog.Logger
}

// Option is a function that configures the database options
type Option func(*options)

// WithLogger sets the logger used to report the opened database.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewFromEnv opens the database described by the environment.
func NewFromEnv(ctx context.Context, prefix string, opts ...Option) (*sql.DB, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sqlite config: %w", err)
	}
	return Open(ctx, cfg, opts...)
}

// Open connects to the sqlite file at cfg.Path. Foreign keys are enforced and
// every transaction starts with BEGIN IMMEDIATE so writers serialize on the
// database lock instead of failing on upgrade.
func Open(ctx context.Context, cfg Options, opts ...Option) (*sql.DB, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	q.Set("_txlock", "immediate")
	q.Set("_journal_mode", "WAL")
	dsn := fmt.Sprintf("file:%s?%s", cfg.Path, q.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", cfg.Path, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db at %s: %w", cfg.Path, err)
	}

	if o.logger != nil {
		o.logger.InfoContext(ctx, "sqlite database opened", "path", cfg.Path, "max_conns", cfg.MaxConns)
	}

	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database
func StatusCheck(ctx context.Context, db *sql.DB) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}
	return db.PingContext(ctx)
}

// InTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", HandleSQLiteError(err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", HandleSQLiteError(err))
	}
	return nil
}

// HandleSQLiteError converts driver errors to application errors.
func HandleSQLiteError(err error) error {
	if err == nil {
		return nil
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.ExtendedCode == sqlite3.ErrConstraintUnique,
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return ErrDBDuplicatedEntry
		case serr.Code == sqlite3.ErrBusy, serr.Code == sqlite3.ErrLocked:
			return ErrDBBusy
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrDBNotFound
	}

	return err
}
