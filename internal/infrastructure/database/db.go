package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/pkg/config"
	"github.com/tuncanbit/ledger/pkg/db"
)

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite3"
)

const uniqueViolationCode = "23505"

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run the
// same query inside or outside an atomic unit.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type DBManager struct {
	Db     *sql.DB
	Driver string
	logger zerolog.Logger
}

func New(cfg *config.DatabaseConfig, logger zerolog.Logger) (*DBManager, error) {
	DBDSN := db.GetDBDSN(cfg)
	Db, err := sql.Open(cfg.Driver, DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows a single writer; one connection serialises atomic units.
		Db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			Db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			Db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			Db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := Db.Ping(); err != nil {
		Db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Connected to database")

	return &DBManager{
		Db:     Db,
		Driver: cfg.Driver,
		logger: logger,
	}, nil
}

func (dm *DBManager) ShutDown() {
	if dm.Db != nil {
		if err := dm.Db.Close(); err != nil {
			dm.logger.Error().Err(err).Msg("Failed to close database")
		}
	}
}

// WithTx runs fn inside a database transaction. The transaction commits only
// when fn returns nil; any error or panic rolls back every effect of fn.
func (dm *DBManager) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := dm.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				dm.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// any of the supported drivers.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
