package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// FromCommon builds the repository config from application config.
func FromCommon(c common.DatabaseConfig) Config {
	return Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is a *sql.DB plus the SQL dialect its queries are built for.
type DB struct {
	*sql.DB
	dialect string
	drv     *entsql.Driver
	pool    *pgxpool.Pool
}

func (d *DB) Dialect() string { return d.dialect }

// Driver exposes the Ent driver, used by Migrate.
func (d *DB) Driver() *entsql.Driver { return d.drv }

func (d *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(d.dialect) }

// OpenFromConfig opens Postgres or SQLite depending on the configured driver.
func OpenFromConfig(ctx context.Context, c common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	switch c.Driver {
	case "sqlite":
		return OpenSQLite(ctx, c.DSN, logger)
	case "postgres", "":
		return Open(ctx, FromCommon(c), logger)
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidInput, c.Driver)
	}
}

// Open creates a pgx pool and wraps it as *sql.DB for the Ent SQL builder.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "sponsorship-analyzer"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{
		DB:      db,
		dialect: dialect.Postgres,
		drv:     entsql.OpenDB(dialect.Postgres, db),
		pool:    pool,
	}, nil
}

// OpenSQLite opens a modernc SQLite database. The DSN must enable foreign keys,
// e.g. "file:sponsorship.db?_pragma=foreign_keys(1)".
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// one writer; also keeps shared in-memory databases alive
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	return &DB{
		DB:      db,
		dialect: dialect.SQLite,
		drv:     entsql.OpenDB(dialect.SQLite, db),
	}, nil
}

// OpenMemory opens a named, shared in-memory SQLite database and migrates it.
// The database lives until the returned DB is closed.
func OpenMemory(ctx context.Context, name string, logger *slog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", url.PathEscape(name))
	db, err := OpenSQLite(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		Close(db, logger)
		return nil, err
	}
	return db, nil
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		if err := db.pool.Ping(ctx); err != nil {
			return err
		}
	} else if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// dbError logs and wraps a storage failure so callers can classify it.
func dbError(logger *slog.Logger, op string, err error, attrs ...any) error {
	logger.Error("db."+op+".failed", append(attrs, "error", err)...)
	return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
