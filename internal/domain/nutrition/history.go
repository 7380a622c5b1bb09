package nutrition

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecognizedFood is what the vision model reported for one photo.
type RecognizedFood struct {
	FoodName string
	Macros
}

// HistoryEntry records one consumed meal. Entries are never edited.
type HistoryEntry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FoodName  string
	Totals    Macros
	ImageURL  string
	CreatedAt time.Time
}

// NewHistoryEntry creates an entry for a recognised meal.
func NewHistoryEntry(userID uuid.UUID, food RecognizedFood, imageURL string, now time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:        uuid.New(),
		UserID:    userID,
		FoodName:  strings.TrimSpace(food.FoodName),
		Totals:    food.Macros,
		ImageURL:  imageURL,
		CreatedAt: now,
	}
}

// FoodSuggestion is one recommended dish.
type FoodSuggestion struct {
	FoodName    string
	Information string
}

// Recommendation is the fixed set of three suggestions returned to the user.
type Recommendation struct {
	Food1 FoodSuggestion
	Food2 FoodSuggestion
	Food3 FoodSuggestion
}

// Foods returns the suggestions in order.
func (r Recommendation) Foods() []FoodSuggestion {
	return []FoodSuggestion{r.Food1, r.Food2, r.Food3}
}
