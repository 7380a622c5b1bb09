// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

// ProfileToModel converts a domain profile to a GORM model
func ProfileToModel(p *nutrition.Profile) *UserProfileModel {
	return &UserProfileModel{
		UserID:      p.UserID,
		DateOfBirth: p.DateOfBirth.UTC(),
		Gender:      p.Gender,
		Weight:      p.Weight,
		Height:      p.Height,
		Allergies:   StringSlice(p.Allergies),
	}
}

// ModelToProfile converts a GORM model to a domain profile
func ModelToProfile(m *UserProfileModel) *nutrition.Profile {
	var allergies []string
	if len(m.Allergies) > 0 {
		allergies = []string(m.Allergies)
	}
	return &nutrition.Profile{
		UserID:      m.UserID,
		DateOfBirth: m.DateOfBirth,
		Gender:      m.Gender,
		Weight:      m.Weight,
		Height:      m.Height,
		Allergies:   allergies,
	}
}

// TargetToModel converts a domain target to a GORM model
func TargetToModel(t *nutrition.Target) *NutritionTargetModel {
	return &NutritionTargetModel{
		UserID:            t.UserID,
		DailyCalorie:      t.Remaining.Calorie,
		DailyCarbohydrate: t.Remaining.Carbohydrate,
		DailySugar:        t.Remaining.Sugar,
		DailyFat:          t.Remaining.Fat,
		DailyProtein:      t.Remaining.Protein,
		UpdatedAt:         t.UpdatedAt.UTC(),
	}
}

// ModelToTarget converts a GORM model to a domain target
func ModelToTarget(m *NutritionTargetModel) *nutrition.Target {
	return &nutrition.Target{
		UserID: m.UserID,
		Remaining: nutrition.Macros{
			Calorie:      m.DailyCalorie,
			Carbohydrate: m.DailyCarbohydrate,
			Sugar:        m.DailySugar,
			Fat:          m.DailyFat,
			Protein:      m.DailyProtein,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

// HistoryToModel converts a domain history entry to a GORM model
func HistoryToModel(e *nutrition.HistoryEntry) *HistoryModel {
	return &HistoryModel{
		ID:                e.ID,
		UserID:            e.UserID,
		FoodName:          e.FoodName,
		TotalCalorie:      e.Totals.Calorie,
		TotalCarbohydrate: e.Totals.Carbohydrate,
		TotalFat:          e.Totals.Fat,
		TotalProtein:      e.Totals.Protein,
		TotalSugar:        e.Totals.Sugar,
		ImageURL:          e.ImageURL,
		CreatedAt:         e.CreatedAt.UTC(),
	}
}

// ModelToHistory converts a GORM model to a domain history entry
func ModelToHistory(m *HistoryModel) *nutrition.HistoryEntry {
	return &nutrition.HistoryEntry{
		ID:       m.ID,
		UserID:   m.UserID,
		FoodName: m.FoodName,
		Totals: nutrition.Macros{
			Calorie:      m.TotalCalorie,
			Carbohydrate: m.TotalCarbohydrate,
			Sugar:        m.TotalSugar,
			Fat:          m.TotalFat,
			Protein:      m.TotalProtein,
		},
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
	}
}
