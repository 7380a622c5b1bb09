// Package ai adapts the generative model port to the tracker's two AI
// use cases: recognising food in photos and recommending dishes.
package ai

import (
	"context"
	"strings"

	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.uber.org/zap"
)

// RecognizerConfig selects models for image prompts
type RecognizerConfig struct {
	VisionModel   string
	DescribeModel string
	Temperature   float64
	MaxTokens     int
}

// FoodRecognizer estimates nutrients from meal photos
type FoodRecognizer struct {
	model  outbound.GenerativeModel
	config RecognizerConfig
	logger *zap.Logger
}

// NewFoodRecognizer creates a recognizer backed by model
func NewFoodRecognizer(model outbound.GenerativeModel, config RecognizerConfig, logger *zap.Logger) *FoodRecognizer {
	return &FoodRecognizer{
		model:  model,
		config: config,
		logger: logger.Named("food-recognizer"),
	}
}

// Recognize asks the vision model for the food name and five nutrient
// values. Every failure is returned as an external service error.
func (r *FoodRecognizer) Recognize(ctx context.Context, image *outbound.InlineImage) (nutrition.RecognizedFood, error) {
	reply, err := r.model.GenerateContent(ctx, outbound.GenerateRequest{
		Model:       r.config.VisionModel,
		Prompt:      recognitionPrompt,
		Image:       image,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nutrition.RecognizedFood{}, apperrors.NewExternalServiceError("food recognition model", err)
	}

	food, err := parseRecognition(reply)
	if err != nil {
		r.logger.Warn("Unusable recognition reply",
			zap.String("model", r.config.VisionModel),
			zap.String("reply", truncate(reply, 300)),
			zap.Error(err))
		return nutrition.RecognizedFood{}, apperrors.NewExternalServiceError("food recognition model", err).
			WithMetadata("reason", "invalid_reply")
	}

	r.logger.Debug("Food recognised",
		zap.String("food", food.FoodName),
		zap.Float64("calorie", food.Calorie))
	return food, nil
}

// Describe returns the model's free-form description of an image
func (r *FoodRecognizer) Describe(ctx context.Context, image *outbound.InlineImage) (string, error) {
	reply, err := r.model.GenerateContent(ctx, outbound.GenerateRequest{
		Model:       r.config.DescribeModel,
		Prompt:      describePrompt,
		Image:       image,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
	})
	if err != nil {
		return "", apperrors.NewExternalServiceError("image description model", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperrors.NewExternalServiceError("image description model", errEmptyReply)
	}
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
