package nutrition

import "time"

// Daily allowance ratios applied on top of the basal calorie estimate.
const (
	CarbohydrateRatio = 0.15
	FatRatio          = 0.20
	ProteinPerKg      = 0.8
	DailySugarCap     = 50.0
)

// CalculateAge returns completed years between dob and ref. The date of
// birth is a calendar date stored at UTC midnight; ref is read in its own
// location.
func CalculateAge(dob, ref time.Time) int {
	if dob.IsZero() {
		return 0
	}
	by, bm, bd := dob.UTC().Date()
	ry, rm, rd := ref.Date()
	age := ry - by
	if rm < bm || (rm == bm && rd < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// CalculateCalories estimates basal metabolic rate with the Harris-Benedict equation.
func CalculateCalories(gender string, weight, height float64, age int) (float64, error) {
	g, err := ParseGender(gender)
	if err != nil {
		return 0, err
	}
	a := float64(age)
	switch g {
	case GenderMale:
		return 66.5 + 13.75*weight + 5.003*height - 6.755*a, nil
	default:
		return 655.1 + 9.563*weight + 1.850*height - 4.676*a, nil
	}
}

// CalculateDailyNutrition derives a full-day baseline from a profile.
func CalculateDailyNutrition(p Profile, now time.Time) (Macros, error) {
	if err := p.Validate(now); err != nil {
		return Macros{}, err
	}
	calories, err := CalculateCalories(p.Gender, p.Weight, p.Height, CalculateAge(p.DateOfBirth, now))
	if err != nil {
		return Macros{}, err
	}
	return Macros{
		Calorie:      calories,
		Carbohydrate: CarbohydrateRatio * calories,
		Sugar:        DailySugarCap,
		Fat:          FatRatio * calories,
		Protein:      ProteinPerKg * p.Weight,
	}, nil
}

// CalculateTotalNutrition reports what is left of the day's allowance.
func CalculateTotalNutrition(t Target) Macros {
	return t.Remaining
}
