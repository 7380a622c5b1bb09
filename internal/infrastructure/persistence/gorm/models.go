// Package gorm provides GORM model definitions for the application
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProfileModel represents the GORM model for body profiles. Profiles are
// written by the profile service and only read here.
type UserProfileModel struct {
	UserID      uuid.UUID   `gorm:"type:char(36);primaryKey"`
	DateOfBirth time.Time   `gorm:"not null"`
	Gender      string      `gorm:"type:varchar(20);not null"`
	Weight      float64     `gorm:"not null"`
	Height      float64     `gorm:"not null"`
	Allergies   StringSlice `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NutritionTargetModel represents the GORM model for the per-user daily target
type NutritionTargetModel struct {
	UserID            uuid.UUID `gorm:"type:char(36);primaryKey"`
	DailyCalorie      float64   `gorm:"not null;default:0"`
	DailyCarbohydrate float64   `gorm:"not null;default:0"`
	DailySugar        float64   `gorm:"not null;default:0"`
	DailyFat          float64   `gorm:"not null;default:0"`
	DailyProtein      float64   `gorm:"not null;default:0"`
	CreatedAt         time.Time
	// Written explicitly by every update; the reset predicate depends on it.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`
}

// HistoryModel represents the GORM model for consumed meals
type HistoryModel struct {
	ID                uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID            uuid.UUID `gorm:"type:char(36);not null;index"`
	FoodName          string    `gorm:"type:varchar(255);not null"`
	TotalCalorie      float64   `gorm:"not null;default:0"`
	TotalCarbohydrate float64   `gorm:"not null;default:0"`
	TotalFat          float64   `gorm:"not null;default:0"`
	TotalProtein      float64   `gorm:"not null;default:0"`
	TotalSugar        float64   `gorm:"not null;default:0"`
	ImageURL          string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"index"`
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BeforeCreate hook for HistoryModel
func (h *HistoryModel) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

func (UserProfileModel) TableName() string {
	return "user_profiles"
}

func (NutritionTargetModel) TableName() string {
	return "nutrition_targets"
}

func (HistoryModel) TableName() string {
	return "history"
}

// AllModels lists every model for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&UserProfileModel{},
		&NutritionTargetModel{},
		&HistoryModel{},
	}
}
