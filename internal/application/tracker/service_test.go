package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/application/ai"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"github.com/nutriscan/tracker/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

const mealReply = `{"foodName":"Nasi Goreng","calorie":500,"sugar":5,"carbohydrate":70,"fat":20,"protein":15}`

// fakeTargets keeps target rows in memory with the same conditional
// semantics as the SQL repositories.
type fakeTargets struct {
	mu   sync.Mutex
	rows map[uuid.UUID]nutrition.Target
}

func (f *fakeTargets) FindByUserID(_ context.Context, userID uuid.UUID) (*nutrition.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[userID]
	if !ok {
		return nil, nutrition.ErrTargetNotFound
	}
	return &t, nil
}

func (f *fakeTargets) ResetIfStale(_ context.Context, userID uuid.UUID, baseline nutrition.Macros, dayStart, dayEnd, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[userID]
	if !ok {
		return false, nutrition.ErrTargetNotFound
	}
	if !t.UpdatedAt.Before(dayStart) && t.UpdatedAt.Before(dayEnd) {
		return false, nil
	}
	t.Reset(baseline, now)
	f.rows[userID] = t
	return true, nil
}

func (f *fakeTargets) Consume(_ context.Context, userID uuid.UUID, meal nutrition.Macros, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[userID]
	if !ok {
		return nutrition.ErrTargetNotFound
	}
	t.Consume(meal, now)
	f.rows[userID] = t
	return nil
}

type fakeHistory struct {
	mu        sync.Mutex
	entries   []*nutrition.HistoryEntry
	createErr error
}

func (f *fakeHistory) Create(_ context.Context, e *nutrition.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) FindAll(context.Context) ([]*nutrition.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*nutrition.HistoryEntry(nil), f.entries...), nil
}

func (f *fakeHistory) FindByUserID(_ context.Context, userID uuid.UUID) ([]*nutrition.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*nutrition.HistoryEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistory) DeleteByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var n int64
	for _, e := range f.entries {
		if e.UserID == userID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type mutexLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *mutexLocker) Lock(_ context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type TrackerServiceTestSuite struct {
	suite.Suite
	now       time.Time
	profile   *nutrition.Profile
	profiles  *testutils.MockProfileRepository
	targets   *fakeTargets
	history   *fakeHistory
	model     *testutils.MockGenerativeModel
	images    *testutils.MockImageStore
	publisher *testutils.RecordingPublisher
	metrics   *testutils.CountingMetrics
	service   *TrackerService
}

func (s *TrackerServiceTestSuite) SetupTest() {
	s.now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s.profile = testutils.NewProfileFactory(7).NewProfileBuilder().
		WithGender("male").
		WithBody(70, 175).
		WithBirthday(time.Date(1990, 10, 17, 0, 0, 0, 0, time.UTC)).
		WithAllergies("peanuts").
		Build()

	s.profiles = &testutils.MockProfileRepository{}
	s.profiles.On("FindByUserID", mock.Anything, s.profile.UserID).Return(s.profile, nil)
	s.profiles.On("FindByUserID", mock.Anything, mock.Anything).Return(nil, nutrition.ErrProfileNotFound)

	s.targets = &fakeTargets{rows: map[uuid.UUID]nutrition.Target{
		s.profile.UserID: {
			UserID:    s.profile.UserID,
			Remaining: nutrition.Macros{Calorie: 2000, Carbohydrate: 300, Sugar: 50, Fat: 400, Protein: 56},
			UpdatedAt: s.now.Add(-2 * time.Hour),
		},
	}}
	s.history = &fakeHistory{}
	s.model = &testutils.MockGenerativeModel{}
	s.images = &testutils.MockImageStore{}
	s.publisher = &testutils.RecordingPublisher{}
	s.metrics = &testutils.CountingMetrics{}

	logger := zaptest.NewLogger(s.T())
	s.service = NewTrackerService(
		s.profiles,
		s.targets,
		s.history,
		passthroughTx{},
		&mutexLocker{},
		ai.NewFoodRecognizer(s.model, ai.RecognizerConfig{VisionModel: "vision", DescribeModel: "describe"}, logger),
		ai.NewRecommender(s.model, nil, ai.RecommenderConfig{TextModel: "text"}, logger),
		s.images,
		s.publisher,
		s.metrics,
		noop.NewTracerProvider().Tracer("test"),
		Config{Location: time.UTC, LockTimeout: time.Second, Now: func() time.Time { return s.now }},
		logger,
	)
}

func (s *TrackerServiceTestSuite) meal() inbound.TrackMealCommand {
	return inbound.TrackMealCommand{Base64Image: testutils.TinyJPEGBase64, MimeType: "image/jpeg"}
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_SameDay() {
	ctx := context.Background()
	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return(mealReply, nil)
	s.images.On("Put", mock.Anything, mock.AnythingOfType("string"), testutils.TinyJPEG, "image/jpeg").
		Return("https://cdn.example.com/meal.jpg", nil)

	result, err := s.service.CalorieTracker(ctx, s.profile.UserID, s.meal())

	s.Require().NoError(err)
	s.Equal("Nasi Goreng", result.FoodInfo.FoodName)
	s.Equal(1500.0, result.TotalNutrition.Calories)
	s.Equal(230.0, result.TotalNutrition.Carbohydrate)
	s.Equal(45.0, result.TotalNutrition.Sugar)
	s.Equal(380.0, result.TotalNutrition.Fat)
	s.Equal(41.0, result.TotalNutrition.Proteins)
	s.Equal("https://cdn.example.com/meal.jpg", result.ImageURL)

	s.Require().Len(s.history.entries, 1)
	s.Equal(500.0, s.history.entries[0].Totals.Calorie)
	s.Equal(1, s.publisher.Count())
	s.Equal(1, s.metrics.Meals)
	s.Equal(0, s.metrics.ResetCount())
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_ResetsStaleTargetFirst() {
	ctx := context.Background()
	row := s.targets.rows[s.profile.UserID]
	row.Remaining = nutrition.Macros{Calorie: -300}
	row.UpdatedAt = s.now.AddDate(0, 0, -1)
	s.targets.rows[s.profile.UserID] = row

	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return(mealReply, nil)
	s.images.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	result, err := s.service.CalorieTracker(ctx, s.profile.UserID, s.meal())
	s.Require().NoError(err)

	baseline, err := nutrition.CalculateDailyNutrition(*s.profile, s.now)
	s.Require().NoError(err)
	s.InDelta(baseline.Calorie-500, result.TotalNutrition.Calories, 1e-9)
	s.InDelta(baseline.Protein-15, result.TotalNutrition.Proteins, 1e-9)
	s.Equal(1, s.metrics.ResetCount())
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_RecognitionFailure() {
	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	_, err := s.service.CalorieTracker(context.Background(), s.profile.UserID, s.meal())

	s.Require().Error(err)
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeImageProcessing, appErr.Code)
	s.Equal("Error processing your image, please try again", appErr.Message)
	s.True(apperrors.Is(err, apperrors.CodeExternalServiceError))
	s.Empty(s.history.entries)
	s.Equal(0, s.publisher.Count())
	s.Equal(2000.0, s.targets.rows[s.profile.UserID].Remaining.Calorie)
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_ArchiveFailureIsNotFatal() {
	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return(mealReply, nil)
	s.images.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket unavailable"))

	result, err := s.service.CalorieTracker(context.Background(), s.profile.UserID, s.meal())

	s.Require().NoError(err)
	s.Empty(result.ImageURL)
	s.Require().Len(s.history.entries, 1)
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_FailedRecordRemovesArchivedImage() {
	s.history.createErr = errors.New("disk full")
	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return(mealReply, nil)
	s.images.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/meal.jpg", nil)
	s.images.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, s.profile.UserID.String()+"/") && strings.HasSuffix(key, ".jpg")
	})).Return(nil).Once()

	_, err := s.service.CalorieTracker(context.Background(), s.profile.UserID, s.meal())

	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.CodeImageProcessing))
	s.images.AssertExpectations(s.T())
	putKey := s.images.Calls[0].Arguments.String(1)
	s.Equal(putKey, s.images.Calls[1].Arguments.String(1))
	s.Equal(2000.0, s.targets.rows[s.profile.UserID].Remaining.Calorie)
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_InvalidImage() {
	_, err := s.service.CalorieTracker(context.Background(), s.profile.UserID, inbound.TrackMealCommand{Base64Image: "%%%"})
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.model.AssertNotCalled(s.T(), "GenerateContent", mock.Anything, mock.Anything)
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_UnknownUser() {
	_, err := s.service.CalorieTracker(context.Background(), uuid.New(), s.meal())
	s.True(apperrors.Is(err, apperrors.CodeNutritionTargetMissing))
	s.model.AssertNotCalled(s.T(), "GenerateContent", mock.Anything, mock.Anything)
}

func (s *TrackerServiceTestSuite) TestCalorieTracker_ConcurrentMealsAreAllCounted() {
	row := s.targets.rows[s.profile.UserID]
	row.UpdatedAt = s.now.AddDate(0, 0, -1)
	s.targets.rows[s.profile.UserID] = row

	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return(mealReply, nil)
	s.images.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	const meals = 8
	var wg sync.WaitGroup
	for i := 0; i < meals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CalorieTracker(context.Background(), s.profile.UserID, s.meal())
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	baseline, err := nutrition.CalculateDailyNutrition(*s.profile, s.now)
	s.Require().NoError(err)
	s.InDelta(baseline.Calorie-meals*500, s.targets.rows[s.profile.UserID].Remaining.Calorie, 1e-6)
	s.Equal(1, s.metrics.ResetCount())
	s.Len(s.history.entries, meals)
}

func (s *TrackerServiceTestSuite) TestGetDailyNutrition() {
	dto, err := s.service.GetDailyNutrition(context.Background(), s.profile.UserID)
	s.Require().NoError(err)
	s.Equal(2000.0, dto.DailyCalorie)
	s.Equal(s.profile.UserID, dto.UserID)

	_, err = s.service.GetDailyNutrition(context.Background(), uuid.New())
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Equal(404, appErr.StatusCode())
}

func (s *TrackerServiceTestSuite) TestGetProgressNutrition_ResetsAcrossMidnight() {
	row := s.targets.rows[s.profile.UserID]
	row.UpdatedAt = time.Date(2026, 10, 16, 23, 59, 59, 0, time.UTC)
	s.targets.rows[s.profile.UserID] = row

	dto, err := s.service.GetProgressNutrition(context.Background(), s.profile.UserID)
	s.Require().NoError(err)

	baseline, err := nutrition.CalculateDailyNutrition(*s.profile, s.now)
	s.Require().NoError(err)
	s.Equal(inbound.NewTotalNutritionDTO(baseline), *dto)

	// second read the same day must not reset again
	_, err = s.service.GetProgressNutrition(context.Background(), s.profile.UserID)
	s.Require().NoError(err)
	s.Equal(1, s.metrics.ResetCount())
}

func (s *TrackerServiceTestSuite) TestGetProgressNutrition_InvalidProfile() {
	s.profile.Gender = "unknown"
	row := s.targets.rows[s.profile.UserID]
	row.UpdatedAt = s.now.AddDate(0, 0, -3)
	s.targets.rows[s.profile.UserID] = row

	_, err := s.service.GetProgressNutrition(context.Background(), s.profile.UserID)
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
}

func (s *TrackerServiceTestSuite) TestHistory() {
	ctx := context.Background()
	other := uuid.New()
	factory := testutils.NewProfileFactory(1)
	s.Require().NoError(s.history.Create(ctx, nutrition.NewHistoryEntry(s.profile.UserID, factory.Meal(), "", s.now)))
	s.Require().NoError(s.history.Create(ctx, nutrition.NewHistoryEntry(other, factory.Meal(), "", s.now)))
	s.Require().NoError(s.history.Create(ctx, nutrition.NewHistoryEntry(s.profile.UserID, factory.Meal(), "", s.now)))

	all, err := s.service.GetAllHistory(ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	mine, err := s.service.GetHistoryByUserID(ctx, s.profile.UserID)
	s.Require().NoError(err)
	s.Len(mine, 2)

	res, err := s.service.DeleteAllHistory(ctx, s.profile.UserID)
	s.Require().NoError(err)
	s.Equal(int64(2), res.Count)
	s.Equal(int64(2), s.metrics.DeletedEntries)

	res, err = s.service.DeleteAllHistory(ctx, s.profile.UserID)
	s.Require().NoError(err)
	s.Equal(int64(0), res.Count)

	mine, err = s.service.GetHistoryByUserID(ctx, s.profile.UserID)
	s.Require().NoError(err)
	s.Empty(mine)
}

func (s *TrackerServiceTestSuite) TestFoodRecommendation() {
	s.model.On("GenerateContent", mock.Anything, mock.Anything).
		Return(`{"food1":{"foodName":"Soto","information":"a"},"food2":{"foodName":"Pecel","information":"b"},"food3":{"foodName":"Tempe","information":"c"}}`, nil)

	rec, err := s.service.FoodRecommendation(context.Background(), s.profile.UserID)
	s.Require().NoError(err)
	s.Equal("Soto", rec.Food1.FoodName)
	s.Equal("Tempe", rec.Food3.FoodName)
}

func (s *TrackerServiceTestSuite) TestFoodRecommendation_UnknownProfile() {
	_, err := s.service.FoodRecommendation(context.Background(), uuid.New())
	s.True(apperrors.Is(err, apperrors.CodeProfileNotFound))
	s.model.AssertNotCalled(s.T(), "GenerateContent", mock.Anything, mock.Anything)
}

func (s *TrackerServiceTestSuite) TestImageTracker() {
	s.model.On("GenerateContent", mock.Anything, mock.Anything).Return("A plate of fried rice.", nil)

	text, err := s.service.ImageTracker(context.Background(), inbound.DescribeImageCommand{Data: testutils.TinyJPEGBase64})
	s.Require().NoError(err)
	s.Equal("A plate of fried rice.", text)
}

func TestTrackerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerServiceTestSuite))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	require.Equal(t, ".webp", extensionFor("image/webp"))
}
