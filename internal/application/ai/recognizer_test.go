package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"github.com/nutriscan/tracker/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const validRecommendation = `{"food1":{"foodName":"Pecel","information":"Vegetables with peanut-free sauce"},
"food2":{"foodName":"Chicken soup","information":"Light protein"},
"food3":{"foodName":"Fruit salad","information":"Low fat"}}`

func testImage() *outbound.InlineImage {
	return &outbound.InlineImage{MimeType: "image/jpeg", Data: testutils.TinyJPEG}
}

func TestFoodRecognizer_Recognize(t *testing.T) {
	ctx := context.Background()
	config := RecognizerConfig{VisionModel: "vision-1", DescribeModel: "describe-1"}

	t.Run("Success", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.MatchedBy(func(req outbound.GenerateRequest) bool {
			return req.Model == "vision-1" && req.Image != nil && req.JSON && req.Prompt == recognitionPrompt
		})).Return(`{"foodName":"Sate Ayam","calorie":"350","sugar":8,"carbohydrate":20,"fat":18,"protein":25}`, nil)

		r := NewFoodRecognizer(model, config, zaptest.NewLogger(t))
		food, err := r.Recognize(ctx, testImage())

		require.NoError(t, err)
		assert.Equal(t, "Sate Ayam", food.FoodName)
		assert.Equal(t, 350.0, food.Calorie)
		model.AssertExpectations(t)
	})

	t.Run("TransportFailure_IsExternalServiceError", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.Anything).Return("", errors.New("connection reset"))

		r := NewFoodRecognizer(model, config, zaptest.NewLogger(t))
		_, err := r.Recognize(ctx, testImage())

		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeExternalServiceError))
	})

	t.Run("MalformedReply_IsExternalServiceError", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.Anything).Return("This looks delicious!", nil)

		r := NewFoodRecognizer(model, config, zaptest.NewLogger(t))
		_, err := r.Recognize(ctx, testImage())

		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeExternalServiceError, appErr.Code)
		assert.Equal(t, "invalid_reply", appErr.Metadata["reason"])
	})
}

func TestFoodRecognizer_Describe(t *testing.T) {
	ctx := context.Background()
	model := &testutils.MockGenerativeModel{}
	model.On("GenerateContent", ctx, mock.MatchedBy(func(req outbound.GenerateRequest) bool {
		return req.Model == "describe-1" && req.Prompt == describePrompt && !req.JSON
	})).Return("  A bowl of noodle soup.  ", nil).Once()
	model.On("GenerateContent", ctx, mock.Anything).Return("   ", nil).Once()

	r := NewFoodRecognizer(model, RecognizerConfig{DescribeModel: "describe-1"}, zaptest.NewLogger(t))

	text, err := r.Describe(ctx, testImage())
	require.NoError(t, err)
	assert.Equal(t, "A bowl of noodle soup.", text)

	_, err = r.Describe(ctx, testImage())
	assert.True(t, apperrors.Is(err, apperrors.CodeExternalServiceError))
}

func TestRecommender_Recommend(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	remaining := nutrition.Macros{Calorie: 1200, Carbohydrate: 180, Sugar: 30, Fat: 240, Protein: 40}
	config := RecommenderConfig{TextModel: "text-1", CacheTTL: 10 * time.Minute}

	t.Run("AllergiesAreListedInPrompt", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.MatchedBy(func(req outbound.GenerateRequest) bool {
			return req.Model == "text-1" && req.Image == nil &&
				assert.Contains(t, req.Prompt, "My food allergies: peanuts, milk.") &&
				assert.Contains(t, req.Prompt, "calories: 1200")
		})).Return(validRecommendation, nil)

		r := NewRecommender(model, nil, config, zaptest.NewLogger(t))
		rec, err := r.Recommend(ctx, userID, remaining, []string{"peanuts", "milk"})

		require.NoError(t, err)
		assert.Equal(t, "Pecel", rec.Food1.FoodName)
		assert.Equal(t, "Fruit salad", rec.Food3.FoodName)
	})

	t.Run("NoAllergiesUsesDefaultText", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.MatchedBy(func(req outbound.GenerateRequest) bool {
			return assert.Contains(t, req.Prompt, "My food allergies: none.")
		})).Return(validRecommendation, nil)

		r := NewRecommender(model, nil, config, zaptest.NewLogger(t))
		_, err := r.Recommend(ctx, userID, remaining, nil)
		require.NoError(t, err)
	})

	t.Run("SchemaMismatch_IsExternalServiceError", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.Anything).Return(`{"food1":{"foodName":"Only one"}}`, nil)

		r := NewRecommender(model, nil, config, zaptest.NewLogger(t))
		_, err := r.Recommend(ctx, userID, remaining, nil)
		assert.True(t, apperrors.Is(err, apperrors.CodeExternalServiceError))
	})

	t.Run("CachedAnswerIsReused", func(t *testing.T) {
		model := &testutils.MockGenerativeModel{}
		model.On("GenerateContent", ctx, mock.Anything).Return(validRecommendation, nil).Once()

		cache := &testutils.MockCacheRepository{}
		var stored []byte
		cache.On("Get", ctx, mock.AnythingOfType("string")).Return(nil, outbound.ErrCacheMiss).Once()
		cache.On("Set", ctx, mock.AnythingOfType("string"), mock.Anything, 10*time.Minute).
			Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).
			Return(nil).Once()

		r := NewRecommender(model, cache, config, zaptest.NewLogger(t))
		first, err := r.Recommend(ctx, userID, remaining, nil)
		require.NoError(t, err)
		require.NotEmpty(t, stored)

		cache.On("Get", ctx, mock.AnythingOfType("string")).Return(stored, nil).Once()
		second, err := r.Recommend(ctx, userID, remaining, nil)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		model.AssertNumberOfCalls(t, "GenerateContent", 1)
		cache.AssertExpectations(t)
	})

	t.Run("CacheKeyIgnoresAllergyOrderAndCase", func(t *testing.T) {
		r := NewRecommender(&testutils.MockGenerativeModel{}, nil, config, zaptest.NewLogger(t))
		a := r.cacheKey(userID, remaining, []string{"Milk", "peanuts"})
		b := r.cacheKey(userID, remaining, []string{"peanuts", "milk", ""})
		c := r.cacheKey(userID, nutrition.Macros{Calorie: 900}, []string{"peanuts", "milk"})

		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
	})
}
