package nutrition

import (
	"time"

	"github.com/google/uuid"
)

// Macros is the five-number nutrient vector shared by targets, meals and history.
type Macros struct {
	Calorie      float64
	Carbohydrate float64
	Sugar        float64
	Fat          float64
	Protein      float64
}

// Sub returns m minus o, field by field. Results may be negative.
func (m Macros) Sub(o Macros) Macros {
	return Macros{
		Calorie:      m.Calorie - o.Calorie,
		Carbohydrate: m.Carbohydrate - o.Carbohydrate,
		Sugar:        m.Sugar - o.Sugar,
		Fat:          m.Fat - o.Fat,
		Protein:      m.Protein - o.Protein,
	}
}

// Target is a user's remaining allowance for the current day. There is one
// row per user, overwritten by the daily reset and decremented by meals.
type Target struct {
	UserID    uuid.UUID
	Remaining Macros
	UpdatedAt time.Time
}

// Consume subtracts a meal from the remaining allowance. Overeating drives
// values below zero and they stay there until the next reset.
func (t *Target) Consume(food Macros, now time.Time) {
	t.Remaining = t.Remaining.Sub(food)
	t.UpdatedAt = now
}

// Reset replaces the remaining allowance with a fresh baseline.
func (t *Target) Reset(baseline Macros, now time.Time) {
	t.Remaining = baseline
	t.UpdatedAt = now
}
