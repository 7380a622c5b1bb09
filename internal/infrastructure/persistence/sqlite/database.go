// Package sqlite provides SQLite database setup and configuration
package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gormModels "github.com/nutriscan/tracker/internal/infrastructure/persistence/gorm"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Demo users created by SeedDatabase
var (
	DemoMaleUserID   = uuid.MustParse("6f1c2b9e-0a4d-4c59-9a53-1f0c7d1e0a01")
	DemoFemaleUserID = uuid.MustParse("6f1c2b9e-0a4d-4c59-9a53-1f0c7d1e0a02")
)

// SetupDatabase creates and configures the SQLite database
func SetupDatabase(dbPath, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	// Use in-memory database if no path provided
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         gormModels.NewLogger(log, logLevel, 0),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(gormModels.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("SQLite database ready", zap.String("path", dbPath))
	return db, nil
}

// SeedDatabase populates the database with demo profiles. The targets are
// stamped at the epoch so the first request of the day resets them.
func SeedDatabase(db *gorm.DB, log *zap.Logger) error {
	var profileCount int64
	if err := db.Model(&gormModels.UserProfileModel{}).Count(&profileCount).Error; err != nil {
		return fmt.Errorf("failed to count profiles: %w", err)
	}
	if profileCount > 0 {
		return nil
	}

	profiles := []gormModels.UserProfileModel{
		{
			UserID:      DemoMaleUserID,
			DateOfBirth: time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
			Gender:      "male",
			Weight:      72,
			Height:      176,
		},
		{
			UserID:      DemoFemaleUserID,
			DateOfBirth: time.Date(1999, 8, 2, 0, 0, 0, 0, time.UTC),
			Gender:      "female",
			Weight:      55,
			Height:      160,
			Allergies:   gormModels.StringSlice{"peanuts", "shellfish"},
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range profiles {
			if err := tx.Create(&profiles[i]).Error; err != nil {
				return fmt.Errorf("failed to seed profile: %w", err)
			}
			target := gormModels.NutritionTargetModel{
				UserID:    profiles[i].UserID,
				UpdatedAt: time.Unix(0, 0).UTC(),
			}
			if err := tx.Create(&target).Error; err != nil {
				return fmt.Errorf("failed to seed nutrition target: %w", err)
			}
		}
		log.Info("Seeded demo profiles", zap.Int("count", len(profiles)))
		return nil
	})
}
