package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"feargreed/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrStoreNotConfigured is returned on first use when the store URL or token is missing.
var ErrStoreNotConfigured = errors.New("history store is not configured")

// Store is the process-wide handle to the history table. The connection and
// schema are set up on first use and reused afterwards.
type Store struct {
	cfg    config.StoreConfig
	open   func() (gorm.Dialector, error)
	logger *zap.Logger

	mu sync.Mutex
	db *gorm.DB
}

// New returns a Store for cfg. Nothing is dialled until the first operation.
func New(cfg config.StoreConfig, env string, logger *zap.Logger) *Store {
	s := &Store{cfg: cfg, logger: orNop(logger)}
	s.open = func() (gorm.Dialector, error) {
		return Dialector(cfg, env)
	}
	return s
}

// NewWithDialector returns a Store over an explicit gorm dialector.
func NewWithDialector(d gorm.Dialector, logger *zap.Logger) *Store {
	return &Store{
		open:   func() (gorm.Dialector, error) { return d, nil },
		logger: orNop(logger),
	}
}

// Dialector picks the gorm driver for the configured store URL.
func Dialector(cfg config.StoreConfig, env string) (gorm.Dialector, error) {
	dsn, err := cfg.DSN(env)
	if err != nil {
		return nil, err
	}
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		return sqlite.Open(dsn), nil
	}
	return postgres.Open(dsn), nil
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.WithContext(ctx), nil
	}

	d, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreNotConfigured, err)
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history store: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if s.cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(s.cfg.MaxOpenConns)
		}
		if s.cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(s.cfg.MaxIdleConns)
		}
		if s.cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
		}
	}

	// CREATE TABLE IF NOT EXISTS
	if err := db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("auto-migrate history table: %w", err)
	}

	s.logger.Info("history store ready", zap.String("table", Record{}.TableName()))
	s.db = db
	return s.db.WithContext(ctx), nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.conn(ctx)
	if err != nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	s.db = nil
	return sqlDB.Close()
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
