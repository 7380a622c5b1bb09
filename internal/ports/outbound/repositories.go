// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

// ErrCacheMiss is returned by CacheRepository.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ProfileRepository reads body profiles owned by the profile service.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*nutrition.Profile, error)
}

// NutritionRepository stores the single daily target row per user.
type NutritionRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*nutrition.Target, error)

	// ResetIfStale overwrites the target with baseline only when its
	// updated_at lies outside [dayStart, dayEnd). It reports whether this
	// call performed the reset.
	ResetIfStale(ctx context.Context, userID uuid.UUID, baseline nutrition.Macros, dayStart, dayEnd, now time.Time) (bool, error)

	// Consume subtracts a meal inside the database so concurrent writers
	// cannot lose each other's updates.
	Consume(ctx context.Context, userID uuid.UUID, meal nutrition.Macros, now time.Time) error
}

// HistoryRepository stores consumed meals.
type HistoryRepository interface {
	Create(ctx context.Context, entry *nutrition.HistoryEntry) error
	FindAll(ctx context.Context) ([]*nutrition.HistoryEntry, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*nutrition.HistoryEntry, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Transactor runs fn in one database transaction. Repositories called with
// the ctx passed to fn join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserLocker serialises mutations for a single user.
type UserLocker interface {
	Lock(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ImageStore archives meal photos and returns a URL for the stored object.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProgressPublisher pushes a user's remaining allowance to live subscribers.
type ProgressPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, remaining nutrition.Macros)
}

// TrackerMetrics receives business counters from the tracker service.
type TrackerMetrics interface {
	MealRecorded()
	DailyReset()
	HistoryDeleted(n int64)
}
