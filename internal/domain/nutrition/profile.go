// Package nutrition holds the tracker's domain model: user body profiles,
// daily nutrition targets, meal history and the pure rules that connect them.
package nutrition

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender selects the calorie formula.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts the English and Indonesian spellings stored by the
// profile service, case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "man", "laki-laki", "pria":
		return GenderMale, nil
	case "female", "f", "woman", "perempuan", "wanita":
		return GenderFemale, nil
	default:
		return "", ErrUnknownGender
	}
}

// Profile is the body data owned by the profile store. The tracker only reads it.
type Profile struct {
	UserID      uuid.UUID
	DateOfBirth time.Time
	Gender      string
	Weight      float64 // kg
	Height      float64 // cm
	Allergies   []string
}

// Validate checks the fields the calorie formula depends on.
func (p Profile) Validate(now time.Time) error {
	if _, err := ParseGender(p.Gender); err != nil {
		return err
	}
	if p.Weight <= 0 {
		return ErrInvalidWeight
	}
	if p.Height <= 0 {
		return ErrInvalidHeight
	}
	if p.DateOfBirth.IsZero() {
		return ErrMissingBirthday
	}
	if p.DateOfBirth.After(now) {
		return ErrBirthdayInFuture
	}
	return nil
}

// HasAllergies reports whether any non-blank allergy is recorded.
func (p Profile) HasAllergies() bool {
	return len(p.CleanAllergies()) > 0
}

// CleanAllergies returns the allergy list with blanks removed.
func (p Profile) CleanAllergies() []string {
	out := make([]string, 0, len(p.Allergies))
	for _, a := range p.Allergies {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
