package nutrition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBounds(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:30 UTC on the 1st is already 03:30 on the 2nd in Jakarta.
	now := time.Date(2024, time.March, 1, 20, 30, 0, 0, time.UTC)

	start, end := DayBounds(now, jakarta)
	assert.Equal(t, time.Date(2024, time.March, 2, 0, 0, 0, 0, jakarta), start)
	assert.Equal(t, time.Date(2024, time.March, 3, 0, 0, 0, 0, jakarta), end)

	start, end = DayBounds(now, time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestNeedsReset(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, time.March, 2, 9, 0, 0, 0, loc)

	tests := []struct {
		name      string
		updatedAt time.Time
		want      bool
	}{
		{"earlier same day", time.Date(2024, time.March, 2, 0, 0, 1, 0, loc), false},
		{"same instant", now, false},
		{"later same day", time.Date(2024, time.March, 2, 23, 59, 59, 0, loc), false},
		{"yesterday evening", time.Date(2024, time.March, 1, 23, 59, 59, 0, loc), true},
		{"last month same day number", time.Date(2024, time.February, 2, 9, 0, 0, 0, loc), true},
		{"future day", time.Date(2024, time.March, 3, 0, 0, 0, 0, loc), true},
		{"never written", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsReset(tt.updatedAt, now, loc))
		})
	}
}

func TestNeedsResetIsTimezoneAware(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	updated := time.Date(2024, time.March, 1, 16, 0, 0, 0, time.UTC) // 23:00 WIB on the 1st
	now := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)     // 01:00 WIB on the 2nd

	assert.False(t, NeedsReset(updated, now, time.UTC))
	assert.True(t, NeedsReset(updated, now, jakarta))
}

func TestResetDiscardsRemaining(t *testing.T) {
	yesterday := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	today := yesterday.AddDate(0, 0, 1)
	target := Target{Remaining: Macros{Calorie: -250, Sugar: 3}, UpdatedAt: yesterday}
	baseline := Macros{Calorie: 1800, Carbohydrate: 270, Sugar: 50, Fat: 360, Protein: 48}

	assert.True(t, NeedsReset(target.UpdatedAt, today, time.UTC))
	target.Reset(baseline, today)

	assert.Equal(t, baseline, target.Remaining)
	assert.False(t, NeedsReset(target.UpdatedAt, today, time.UTC))
}
