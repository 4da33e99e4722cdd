package store

import (
	"context"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies every pending embedded migration for the active dialect.
func (db *DB) Migrate(ctx context.Context) error {
	m, release, err := db.migrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "migrate version")
	}
	fields := []zap.Field{
		zap.String("dialect", string(db.dialect)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	}
	if db.dialect == DialectSQLite {
		fields = append(fields, zap.String("path", sqlitePath(ctx, db.x.DB)))
	}
	db.log.Info("schema ready", fields...)
	return nil
}

// MigrateDown rolls back the given number of migration steps.
func (db *DB) MigrateDown(ctx context.Context, steps int) error {
	m, release, err := db.migrator(ctx)
	if err != nil {
		return err
	}
	defer release()
	if steps <= 0 {
		steps = 1
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate down")
	}
	return nil
}

// SchemaVersion reports the applied migration version. version is 0 on an empty
// schema.
func (db *DB) SchemaVersion(ctx context.Context) (version uint, dirty bool, err error) {
	m, release, err := db.migrator(ctx)
	if err != nil {
		return 0, false, err
	}
	defer release()
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "migrate version")
	}
	return version, dirty, nil
}

// migrator builds a migrate instance over the shared pool. The returned release
// func never closes the pool itself: the sqlite driver would, so it is left open.
func (db *DB) migrator(ctx context.Context) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(db.dialect))
	if err != nil {
		return nil, nil, errors.Wrap(err, "migrations source")
	}

	var (
		driver  database.Driver
		release = func() { _ = src.Close() }
	)
	switch db.dialect {
	case DialectPostgres:
		conn, connErr := db.x.Conn(ctx)
		if connErr != nil {
			release()
			return nil, nil, errors.Wrap(connErr, "migrations connection")
		}
		driver, err = migratepg.WithConnection(ctx, conn, &migratepg.Config{})
		if err == nil {
			release = func() {
				_ = driver.Close()
				_ = src.Close()
			}
		} else {
			_ = conn.Close()
		}
	default:
		driver, err = migratesqlite.WithInstance(db.x.DB, &migratesqlite.Config{})
	}
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, "migrations driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, string(db.dialect), driver)
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, "migrations init")
	}
	return m, release, nil
}
