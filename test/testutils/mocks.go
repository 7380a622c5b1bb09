// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// MockGenerativeModel provides a mock implementation of GenerativeModel
type MockGenerativeModel struct {
	mock.Mock
}

// GenerateContent records the request and returns the configured reply
func (m *MockGenerativeModel) GenerateContent(ctx context.Context, req outbound.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Provider returns a fixed provider name
func (m *MockGenerativeModel) Provider() string { return "mock" }

// MockCacheRepository provides a mock implementation of CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockImageStore provides a mock implementation of ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// RecordingPublisher captures published progress updates
type RecordingPublisher struct {
	mu      sync.Mutex
	Updates []ProgressUpdate
}

// ProgressUpdate is one captured publication
type ProgressUpdate struct {
	UserID    uuid.UUID
	Remaining nutrition.Macros
}

func (p *RecordingPublisher) Publish(ctx context.Context, userID uuid.UUID, remaining nutrition.Macros) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Updates = append(p.Updates, ProgressUpdate{UserID: userID, Remaining: remaining})
}

// Count returns the number of captured updates
func (p *RecordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Updates)
}

// CountingMetrics counts tracker business events
type CountingMetrics struct {
	mu             sync.Mutex
	Meals          int
	Resets         int
	DeletedEntries int64
}

func (c *CountingMetrics) MealRecorded() {
	c.mu.Lock()
	c.Meals++
	c.mu.Unlock()
}

func (c *CountingMetrics) DailyReset() {
	c.mu.Lock()
	c.Resets++
	c.mu.Unlock()
}

func (c *CountingMetrics) HistoryDeleted(n int64) {
	c.mu.Lock()
	c.DeletedEntries += n
	c.mu.Unlock()
}

// ResetCount returns the number of resets seen
func (c *CountingMetrics) ResetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Resets
}

// MockProfileRepository provides a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*nutrition.Profile, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*nutrition.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTrackerService provides a mock implementation of inbound.TrackerService
type MockTrackerService struct {
	mock.Mock
}

func (m *MockTrackerService) CalorieTracker(ctx context.Context, userID uuid.UUID, cmd inbound.TrackMealCommand) (*inbound.MealResultDTO, error) {
	args := m.Called(ctx, userID, cmd)
	if r, ok := args.Get(0).(*inbound.MealResultDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) DeleteAllHistory(ctx context.Context, userID uuid.UUID) (*inbound.DeleteResultDTO, error) {
	args := m.Called(ctx, userID)
	if r, ok := args.Get(0).(*inbound.DeleteResultDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) ImageTracker(ctx context.Context, cmd inbound.DescribeImageCommand) (string, error) {
	args := m.Called(ctx, cmd)
	return args.String(0), args.Error(1)
}

func (m *MockTrackerService) GetAllHistory(ctx context.Context) ([]inbound.HistoryDTO, error) {
	args := m.Called(ctx)
	if r, ok := args.Get(0).([]inbound.HistoryDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) GetHistoryByUserID(ctx context.Context, userID uuid.UUID) ([]inbound.HistoryDTO, error) {
	args := m.Called(ctx, userID)
	if r, ok := args.Get(0).([]inbound.HistoryDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) GetDailyNutrition(ctx context.Context, userID uuid.UUID) (*inbound.DailyNutritionDTO, error) {
	args := m.Called(ctx, userID)
	if r, ok := args.Get(0).(*inbound.DailyNutritionDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) GetProgressNutrition(ctx context.Context, userID uuid.UUID) (*inbound.TotalNutritionDTO, error) {
	args := m.Called(ctx, userID)
	if r, ok := args.Get(0).(*inbound.TotalNutritionDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTrackerService) FoodRecommendation(ctx context.Context, userID uuid.UUID) (*inbound.RecommendationDTO, error) {
	args := m.Called(ctx, userID)
	if r, ok := args.Get(0).(*inbound.RecommendationDTO); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
