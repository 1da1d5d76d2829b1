// Package postgres implements PostgreSQL-backed storage for Huddle using GORM.
// All GORM usage is confined to this package and the sqlite backend, which
// reuses these models and repositories.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config configures the PostgreSQL connection and pool. Zero pool fields
// fall back to 10 open, 2 idle and a 30 minute lifetime.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Pool sizes the database/sql pool behind a GORM connection.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

func (c Config) pool() Pool {
	return Pool{
		MaxOpen:     orDefault(c.MaxOpenConns, 10),
		MaxIdle:     orDefault(c.MaxIdleConns, 2),
		MaxLifetime: orDefault(c.ConnMaxLifetime, 30*time.Minute),
	}
}

// Open connects to PostgreSQL. Tables are created by Store.Migrate.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool := cfg.pool()
	db, err := Connect(postgres.Open(cfg.DSN), pool, log, func(c *gorm.Config) { c.PrepareStmt = true })
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	log.Info("postgres connected",
		slog.Int("max_open_conns", pool.MaxOpen),
		slog.Int("max_idle_conns", pool.MaxIdle),
	)
	return NewStore(db, DriverName), nil
}

// Connect opens a GORM handle on any dialector with UTC timestamps, slog
// query logging and the given pool limits. Zero pool fields are left alone.
func Connect(d gorm.Dialector, pool Pool, log *slog.Logger, tune ...func(*gorm.Config)) (*gorm.DB, error) {
	gc := &gorm.Config{
		Logger:  gormLogger(log),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range tune {
		fn(gc)
	}
	db, err := gorm.Open(d, gc)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	if pool.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrating: %w", err)
	}
	return nil
}

// gormLogger reports slow queries and errors through slog; record-not-found
// is expected by the repositories and stays quiet.
func gormLogger(log *slog.Logger) logger.Interface {
	return logger.New(gormWriter{log.With(slog.String("component", "gorm"))}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct{ log *slog.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}
