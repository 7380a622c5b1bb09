// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nutriscan/tracker/internal/infrastructure/config"
	gormModels "github.com/nutriscan/tracker/internal/infrastructure/persistence/gorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// ConnectionManager owns the primary connection pool and any read replicas
type ConnectionManager struct {
	config  *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	writeDB *sql.DB
}

// NewConnectionManager opens the primary database and registers read replicas
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	return Open(cfg.GetDSN(), cfg.Database, cfg.App.LogLevel, log)
}

// Open connects to dsn and applies the pool settings from db
func Open(dsn string, db config.DatabaseConfig, logLevel string, log *zap.Logger) (*ConnectionManager, error) {
	log = log.Named("postgres")

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormModels.NewLogger(log, logLevel, db.SlowQueryThreshold),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if db.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(db.MaxOpenConns)
	}
	if db.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(db.MaxIdleConns)
	}
	if db.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(db.ConnMaxLifetime)
	}
	if db.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(db.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cm := &ConnectionManager{logger: log, db: gdb, writeDB: sqlDB}

	if len(db.ReplicaDSNs) > 0 {
		replicas := make([]gorm.Dialector, len(db.ReplicaDSNs))
		for i, replica := range db.ReplicaDSNs {
			replicas[i] = postgres.Open(replica)
		}
		err := gdb.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to register read replicas: %w", err)
		}
		log.Info("Read replicas configured", zap.Int("replica_count", len(replicas)))
	}

	log.Info("Database connection established",
		zap.Int("max_open_conns", db.MaxOpenConns),
		zap.Int("max_idle_conns", db.MaxIdleConns),
		zap.Duration("conn_max_lifetime", db.ConnMaxLifetime),
	)

	return cm, nil
}

// GetDB returns the main database connection
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// SQLDB returns the primary pool
func (cm *ConnectionManager) SQLDB() *sql.DB {
	return cm.writeDB
}

// HealthCheck pings the primary database
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.writeDB.PingContext(ctx); err != nil {
		return fmt.Errorf("primary database ping failed: %w", err)
	}
	return nil
}

// Close closes the primary pool
func (cm *ConnectionManager) Close() error {
	if err := cm.writeDB.Close(); err != nil {
		cm.logger.Error("Failed to close primary database", zap.Error(err))
		return err
	}
	return nil
}
