// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

// TrackerService defines the nutrition tracking use cases
type TrackerService interface {
	// Commands
	CalorieTracker(ctx context.Context, userID uuid.UUID, cmd TrackMealCommand) (*MealResultDTO, error)
	DeleteAllHistory(ctx context.Context, userID uuid.UUID) (*DeleteResultDTO, error)

	// Queries
	ImageTracker(ctx context.Context, cmd DescribeImageCommand) (string, error)
	GetAllHistory(ctx context.Context) ([]HistoryDTO, error)
	GetHistoryByUserID(ctx context.Context, userID uuid.UUID) ([]HistoryDTO, error)
	GetDailyNutrition(ctx context.Context, userID uuid.UUID) (*DailyNutritionDTO, error)
	GetProgressNutrition(ctx context.Context, userID uuid.UUID) (*TotalNutritionDTO, error)
	FoodRecommendation(ctx context.Context, userID uuid.UUID) (*RecommendationDTO, error)
}

// TrackMealCommand carries a base64 meal photo. MimeType may be empty, and a
// data URI prefix on Base64Image overrides it.
type TrackMealCommand struct {
	Base64Image string
	MimeType    string
}

// DescribeImageCommand carries an image for free-form description.
type DescribeImageCommand struct {
	Data     string
	MimeType string
}

// FoodInfoDTO is the recognised meal as returned to clients
type FoodInfoDTO struct {
	FoodName     string  `json:"foodName"`
	Calorie      float64 `json:"calorie"`
	Sugar        float64 `json:"sugar"`
	Carbohydrate float64 `json:"carbohydrate"`
	Fat          float64 `json:"fat"`
	Protein      float64 `json:"protein"`
}

// TotalNutritionDTO is the remaining allowance for today
type TotalNutritionDTO struct {
	Calories     float64 `json:"calories"`
	Carbohydrate float64 `json:"carbohydrate"`
	Sugar        float64 `json:"sugar"`
	Fat          float64 `json:"fat"`
	Proteins     float64 `json:"proteins"`
}

// MealResultDTO is returned after a meal is recorded
type MealResultDTO struct {
	FoodInfo       FoodInfoDTO       `json:"foodInfo"`
	TotalNutrition TotalNutritionDTO `json:"totalNutrition"`
	ImageURL       string            `json:"imageUrl,omitempty"`
}

// DailyNutritionDTO mirrors the stored target row
type DailyNutritionDTO struct {
	UserID            uuid.UUID `json:"userId"`
	DailyCalorie      float64   `json:"dailyCalorie"`
	DailyCarbohydrate float64   `json:"dailyCarbohydrate"`
	DailySugar        float64   `json:"dailySugar"`
	DailyFat          float64   `json:"dailyFat"`
	DailyProtein      float64   `json:"dailyProtein"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// HistoryDTO is one consumed meal
type HistoryDTO struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	FoodName          string    `json:"foodName"`
	TotalCalorie      float64   `json:"totalCalorie"`
	TotalCarbohydrate float64   `json:"totalCarbohydrate"`
	TotalFat          float64   `json:"totalFat"`
	TotalProtein      float64   `json:"totalProtein"`
	TotalSugar        float64   `json:"totalSugar"`
	ImageURL          string    `json:"imageUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// DeleteResultDTO reports how many history rows were removed
type DeleteResultDTO struct {
	Count int64 `json:"count"`
}

// FoodSuggestionDTO is one recommended dish
type FoodSuggestionDTO struct {
	FoodName    string `json:"foodName"`
	Information string `json:"information"`
}

// RecommendationDTO holds exactly three suggestions
type RecommendationDTO struct {
	Food1 FoodSuggestionDTO `json:"food1"`
	Food2 FoodSuggestionDTO `json:"food2"`
	Food3 FoodSuggestionDTO `json:"food3"`
}

// NewFoodInfoDTO converts a recognised meal
func NewFoodInfoDTO(f nutrition.RecognizedFood) FoodInfoDTO {
	return FoodInfoDTO{
		FoodName:     f.FoodName,
		Calorie:      f.Calorie,
		Sugar:        f.Sugar,
		Carbohydrate: f.Carbohydrate,
		Fat:          f.Fat,
		Protein:      f.Protein,
	}
}

// NewTotalNutritionDTO converts remaining macros
func NewTotalNutritionDTO(m nutrition.Macros) TotalNutritionDTO {
	return TotalNutritionDTO{
		Calories:     m.Calorie,
		Carbohydrate: m.Carbohydrate,
		Sugar:        m.Sugar,
		Fat:          m.Fat,
		Proteins:     m.Protein,
	}
}

// NewDailyNutritionDTO converts a stored target
func NewDailyNutritionDTO(t *nutrition.Target) *DailyNutritionDTO {
	return &DailyNutritionDTO{
		UserID:            t.UserID,
		DailyCalorie:      t.Remaining.Calorie,
		DailyCarbohydrate: t.Remaining.Carbohydrate,
		DailySugar:        t.Remaining.Sugar,
		DailyFat:          t.Remaining.Fat,
		DailyProtein:      t.Remaining.Protein,
		UpdatedAt:         t.UpdatedAt,
	}
}

// NewHistoryDTOs converts history entries preserving order
func NewHistoryDTOs(entries []*nutrition.HistoryEntry) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryDTO{
			ID:                e.ID,
			UserID:            e.UserID,
			FoodName:          e.FoodName,
			TotalCalorie:      e.Totals.Calorie,
			TotalCarbohydrate: e.Totals.Carbohydrate,
			TotalFat:          e.Totals.Fat,
			TotalProtein:      e.Totals.Protein,
			TotalSugar:        e.Totals.Sugar,
			ImageURL:          e.ImageURL,
			CreatedAt:         e.CreatedAt,
		})
	}
	return out
}

// NewRecommendationDTO converts a recommendation
func NewRecommendationDTO(r nutrition.Recommendation) *RecommendationDTO {
	conv := func(f nutrition.FoodSuggestion) FoodSuggestionDTO {
		return FoodSuggestionDTO{FoodName: f.FoodName, Information: f.Information}
	}
	return &RecommendationDTO{Food1: conv(r.Food1), Food2: conv(r.Food2), Food3: conv(r.Food3)}
}
