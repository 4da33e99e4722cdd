// Package store persists moderation settings, warnings, bans, sudo ids, ranks and
// message history. SQLite is the default backend; a postgres:// DSN selects Postgres.
package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	// ErrAlreadyApplied is returned when an event has already been counted.
	ErrAlreadyApplied = errors.New("store: event already applied")
)

type DB struct {
	x       *sqlx.DB
	dialect Dialect
	log     *zap.Logger
}

// DialectFor infers the backend from a connection string.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to dsn, applies backend tuning and runs pending migrations.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	db, err := Connect(ctx, dsn, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect is Open without the migrations.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dialect := DialectFor(dsn)

	var (
		x   *sqlx.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		x, err = sqlx.Open("postgres", dsn)
	default:
		x, err = sqlx.Open("sqlite", dsn)
		if err == nil {
			// modernc serializes writers per file; one connection avoids SQLITE_BUSY.
			x.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dialect)
	}
	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, errors.Wrapf(err, "ping %s", dialect)
	}

	db := &DB{x: x, dialect: dialect, log: log.Named("store")}
	if dialect == DialectSQLite {
		db.applySQLitePragmas(ctx)
	}
	return db, nil
}

func (db *DB) Close() error { return db.x.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.x.PingContext(ctx) }

func (db *DB) Dialect() Dialect { return db.dialect }

func (db *DB) Policies() *PolicyRepository { return &PolicyRepository{db: db.x} }

func (db *DB) GroupSettings() *GroupSettingsRepository { return &GroupSettingsRepository{db: db.x} }

func (db *DB) Warnings() *WarningRepository { return &WarningRepository{db: db.x} }

func (db *DB) Bans() *BanRepository { return &BanRepository{db: db.x} }

func (db *DB) Sudo() *SudoRepository { return &SudoRepository{db: db.x} }

func (db *DB) Ranks() *RankRepository { return &RankRepository{db: db.x} }

func (db *DB) History() *HistoryRepository { return &HistoryRepository{db: db.x} }

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA temp_store=MEMORY;",
	"PRAGMA foreign_keys=ON;",
}

func (db *DB) applySQLitePragmas(ctx context.Context) {
	for _, pragma := range sqlitePragmas {
		value, err := applyPragma(ctx, db.x.DB, pragma)
		if err != nil {
			db.log.Warn("sqlite: pragma failed", zap.String("pragma", pragma), zap.Error(err))
			continue
		}
		db.log.Debug("sqlite: pragma applied", zap.String("pragma", pragma), zap.Any("value", value))
	}
}

func applyPragma(ctx context.Context, db *sql.DB, pragma string) (any, error) {
	row := db.QueryRowContext(ctx, pragma)
	var value any
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				return nil, execErr
			}
			return "ok", nil
		}
		return nil, err
	}
	return value, nil
}

// sqlitePath reports the file backing the main database, "(memory)" for in-memory ones.
func sqlitePath(ctx context.Context, db *sql.DB) string {
	rows, err := db.QueryContext(ctx, `PRAGMA database_list;`)
	if err != nil {
		return "(unknown)"
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return "(unknown)"
		}
		if strings.EqualFold(strings.TrimSpace(name), "main") {
			if file.Valid && strings.TrimSpace(file.String) != "" {
				return file.String
			}
			return "(memory)"
		}
	}
	return "(unknown)"
}
