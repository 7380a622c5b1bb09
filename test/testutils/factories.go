// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"encoding/base64"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

// ProfileFactory provides methods to create test profiles
type ProfileFactory struct {
	faker *gofakeit.Faker
}

// NewProfileFactory creates a new profile factory with seeded faker
func NewProfileFactory(seed int64) *ProfileFactory {
	return &ProfileFactory{
		faker: gofakeit.New(seed),
	}
}

// ProfileBuilder provides a fluent interface for building test profiles
type ProfileBuilder struct {
	profile nutrition.Profile
}

// NewProfileBuilder creates a builder filled with plausible adult values
func (f *ProfileFactory) NewProfileBuilder() *ProfileBuilder {
	gender := "male"
	if f.faker.Bool() {
		gender = "female"
	}
	return &ProfileBuilder{profile: nutrition.Profile{
		UserID:      uuid.New(),
		Gender:      gender,
		Weight:      float64(f.faker.Number(45, 110)),
		Height:      float64(f.faker.Number(150, 195)),
		DateOfBirth: f.faker.DateRange(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC)),
	}}
}

// WithUserID sets the user id
func (b *ProfileBuilder) WithUserID(id uuid.UUID) *ProfileBuilder {
	b.profile.UserID = id
	return b
}

// WithGender sets the gender
func (b *ProfileBuilder) WithGender(gender string) *ProfileBuilder {
	b.profile.Gender = gender
	return b
}

// WithBody sets weight in kg and height in cm
func (b *ProfileBuilder) WithBody(weight, height float64) *ProfileBuilder {
	b.profile.Weight = weight
	b.profile.Height = height
	return b
}

// WithBirthday sets the date of birth
func (b *ProfileBuilder) WithBirthday(dob time.Time) *ProfileBuilder {
	b.profile.DateOfBirth = dob
	return b
}

// WithAllergies sets the allergy list
func (b *ProfileBuilder) WithAllergies(allergies ...string) *ProfileBuilder {
	b.profile.Allergies = allergies
	return b
}

// Build returns the profile
func (b *ProfileBuilder) Build() *nutrition.Profile {
	p := b.profile
	return &p
}

// Profile returns a random valid profile
func (f *ProfileFactory) Profile() *nutrition.Profile {
	return f.NewProfileBuilder().Build()
}

// Meal returns a random recognised meal
func (f *ProfileFactory) Meal() nutrition.RecognizedFood {
	return nutrition.RecognizedFood{
		FoodName: f.faker.Dinner(),
		Macros: nutrition.Macros{
			Calorie:      float64(f.faker.Number(100, 900)),
			Carbohydrate: float64(f.faker.Number(5, 120)),
			Sugar:        float64(f.faker.Number(0, 40)),
			Fat:          float64(f.faker.Number(1, 60)),
			Protein:      float64(f.faker.Number(1, 60)),
		},
	}
}

// TinyJPEG is a minimal JPEG header, enough to pass base64 and MIME checks.
var TinyJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

// TinyJPEGBase64 is TinyJPEG base64-encoded
var TinyJPEGBase64 = base64.StdEncoding.EncodeToString(TinyJPEG)
