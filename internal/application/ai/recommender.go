package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.uber.org/zap"
)

// RecommenderConfig selects the text model and cache lifetime
type RecommenderConfig struct {
	TextModel   string
	Temperature float64
	MaxTokens   int
	CacheTTL    time.Duration
}

// Recommender suggests three dishes for a user's remaining allowance
type Recommender struct {
	model  outbound.GenerativeModel
	cache  outbound.CacheRepository
	config RecommenderConfig
	logger *zap.Logger
}

// NewRecommender creates a recommender. cache may be nil.
func NewRecommender(model outbound.GenerativeModel, cache outbound.CacheRepository, config RecommenderConfig, logger *zap.Logger) *Recommender {
	return &Recommender{
		model:  model,
		cache:  cache,
		config: config,
		logger: logger.Named("recommender"),
	}
}

// Recommend returns three suggestions that respect the user's allergies.
// Identical requests within the cache TTL reuse the previous answer.
func (r *Recommender) Recommend(ctx context.Context, userID uuid.UUID, remaining nutrition.Macros, allergies []string) (nutrition.Recommendation, error) {
	key := r.cacheKey(userID, remaining, allergies)
	if rec, ok := r.cached(ctx, key); ok {
		r.logger.Debug("Recommendation served from cache", zap.String("user_id", userID.String()))
		return rec, nil
	}

	reply, err := r.model.GenerateContent(ctx, outbound.GenerateRequest{
		Model:       r.config.TextModel,
		Prompt:      buildRecommendationPrompt(remaining, allergies),
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nutrition.Recommendation{}, apperrors.NewExternalServiceError("recommendation model", err)
	}

	rec, err := parseRecommendation(reply)
	if err != nil {
		r.logger.Warn("Unusable recommendation reply",
			zap.String("model", r.config.TextModel),
			zap.String("reply", truncate(reply, 300)),
			zap.Error(err))
		return nutrition.Recommendation{}, apperrors.NewExternalServiceError("recommendation model", err).
			WithMetadata("reason", "invalid_reply")
	}

	r.store(ctx, key, rec)
	return rec, nil
}

func (r *Recommender) cacheKey(userID uuid.UUID, remaining nutrition.Macros, allergies []string) string {
	sorted := append([]string(nil), nutrition.Profile{Allergies: allergies}.CleanAllergies()...)
	for i := range sorted {
		sorted[i] = strings.ToLower(sorted[i])
	}
	sort.Strings(sorted)

	raw := fmt.Sprintf("%.0f|%.0f|%.0f|%.0f|%.0f|%s",
		remaining.Calorie, remaining.Carbohydrate, remaining.Sugar, remaining.Fat, remaining.Protein,
		strings.Join(sorted, ","))
	sum := sha256.Sum256([]byte(raw))
	return "recommendation:" + userID.String() + ":" + hex.EncodeToString(sum[:])[:32]
}

func (r *Recommender) cached(ctx context.Context, key string) (nutrition.Recommendation, bool) {
	if r.cache == nil || r.config.CacheTTL <= 0 {
		return nutrition.Recommendation{}, false
	}
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		return nutrition.Recommendation{}, false
	}
	var rec nutrition.Recommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Warn("Discarding corrupt cached recommendation", zap.String("key", key), zap.Error(err))
		return nutrition.Recommendation{}, false
	}
	return rec, true
}

func (r *Recommender) store(ctx context.Context, key string, rec nutrition.Recommendation) {
	if r.cache == nil || r.config.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Warn("Failed to marshal recommendation for caching", zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, data, r.config.CacheTTL); err != nil {
		r.logger.Warn("Failed to cache recommendation", zap.Error(err))
	}
}
