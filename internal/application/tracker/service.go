// Package tracker provides the application layer for daily nutrition tracking
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/application/ai"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var _ inbound.TrackerService = (*TrackerService)(nil)

// Config holds tracker rules
type Config struct {
	// Location decides where a calendar day starts and ends.
	Location    *time.Location
	LockTimeout time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

// TrackerService implements the nutrition tracking use cases
type TrackerService struct {
	profiles    outbound.ProfileRepository
	targets     outbound.NutritionRepository
	history     outbound.HistoryRepository
	tx          outbound.Transactor
	locker      outbound.UserLocker
	recognizer  *ai.FoodRecognizer
	recommender *ai.Recommender
	images      outbound.ImageStore
	progress    outbound.ProgressPublisher
	metrics     outbound.TrackerMetrics
	tracer      trace.Tracer
	config      Config
	logger      *zap.Logger
}

// NewTrackerService creates a new tracker service
func NewTrackerService(
	profiles outbound.ProfileRepository,
	targets outbound.NutritionRepository,
	history outbound.HistoryRepository,
	tx outbound.Transactor,
	locker outbound.UserLocker,
	recognizer *ai.FoodRecognizer,
	recommender *ai.Recommender,
	images outbound.ImageStore,
	progress outbound.ProgressPublisher,
	metrics outbound.TrackerMetrics,
	tracer trace.Tracer,
	config Config,
	logger *zap.Logger,
) *TrackerService {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.LockTimeout == 0 {
		config.LockTimeout = time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TrackerService{
		profiles:    profiles,
		targets:     targets,
		history:     history,
		tx:          tx,
		locker:      locker,
		recognizer:  recognizer,
		recommender: recommender,
		images:      images,
		progress:    progress,
		metrics:     metrics,
		tracer:      tracer,
		config:      config,
		logger:      logger.Named("tracker-service"),
	}
}

// CalorieTracker recognises a meal photo, records it and returns the
// recognised food with the allowance left for today.
func (s *TrackerService) CalorieTracker(ctx context.Context, userID uuid.UUID, cmd inbound.TrackMealCommand) (*inbound.MealResultDTO, error) {
	ctx, span := s.startSpan(ctx, "CalorieTracker", userID)
	defer span.End()

	image, err := ai.DecodeImage(cmd.Base64Image, cmd.MimeType)
	if err != nil {
		return nil, fail(span, err)
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	defer unlock()

	if _, err := s.ensureToday(ctx, userID); err != nil {
		return nil, fail(span, err)
	}

	food, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		s.logger.Error("Food recognition failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fail(span, apperrors.NewImageProcessingError(err))
	}

	now := s.config.Now().UTC()
	entry := nutrition.NewHistoryEntry(userID, food, "", now)
	imageKey := fmt.Sprintf("%s/%s%s", entry.UserID, entry.ID, extensionFor(image.MimeType))
	entry.ImageURL = s.archiveImage(ctx, imageKey, image)

	var target *nutrition.Target
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.history.Create(ctx, entry); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		if err := s.targets.Consume(ctx, userID, food.Macros, now); err != nil {
			return fmt.Errorf("consume meal: %w", err)
		}
		t, err := s.targets.FindByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("reload target: %w", err)
		}
		target = t
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record meal", zap.String("user_id", userID.String()), zap.Error(err))
		if entry.ImageURL != "" {
			s.discardImage(ctx, imageKey)
		}
		return nil, fail(span, apperrors.NewImageProcessingError(err))
	}

	s.metrics.MealRecorded()
	s.progress.Publish(ctx, userID, target.Remaining)

	s.logger.Info("Meal recorded",
		zap.String("user_id", userID.String()),
		zap.String("history_id", entry.ID.String()),
		zap.String("food", food.FoodName),
		zap.Float64("calorie", food.Calorie),
		zap.Float64("remaining_calorie", target.Remaining.Calorie))

	return &inbound.MealResultDTO{
		FoodInfo:       inbound.NewFoodInfoDTO(food),
		TotalNutrition: inbound.NewTotalNutritionDTO(nutrition.CalculateTotalNutrition(*target)),
		ImageURL:       entry.ImageURL,
	}, nil
}

// ImageTracker returns a free-form description of an image
func (s *TrackerService) ImageTracker(ctx context.Context, cmd inbound.DescribeImageCommand) (string, error) {
	ctx, span := s.tracer.Start(ctx, "tracker.ImageTracker")
	defer span.End()

	image, err := ai.DecodeImage(cmd.Data, cmd.MimeType)
	if err != nil {
		return "", fail(span, err)
	}
	text, err := s.recognizer.Describe(ctx, image)
	if err != nil {
		return "", fail(span, err)
	}
	return text, nil
}

// GetAllHistory lists every user's history
func (s *TrackerService) GetAllHistory(ctx context.Context) ([]inbound.HistoryDTO, error) {
	ctx, span := s.tracer.Start(ctx, "tracker.GetAllHistory")
	defer span.End()

	entries, err := s.history.FindAll(ctx)
	if err != nil {
		return nil, fail(span, apperrors.NewDatabaseError("list history", err))
	}
	return inbound.NewHistoryDTOs(entries), nil
}

// GetHistoryByUserID lists one user's history
func (s *TrackerService) GetHistoryByUserID(ctx context.Context, userID uuid.UUID) ([]inbound.HistoryDTO, error) {
	ctx, span := s.startSpan(ctx, "GetHistoryByUserID", userID)
	defer span.End()

	entries, err := s.history.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fail(span, apperrors.NewDatabaseError("list user history", err))
	}
	return inbound.NewHistoryDTOs(entries), nil
}

// GetDailyNutrition returns today's target row, resetting it first if stale
func (s *TrackerService) GetDailyNutrition(ctx context.Context, userID uuid.UUID) (*inbound.DailyNutritionDTO, error) {
	ctx, span := s.startSpan(ctx, "GetDailyNutrition", userID)
	defer span.End()

	target, err := s.lockedEnsureToday(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	return inbound.NewDailyNutritionDTO(target), nil
}

// GetProgressNutrition returns what is left of today's allowance
func (s *TrackerService) GetProgressNutrition(ctx context.Context, userID uuid.UUID) (*inbound.TotalNutritionDTO, error) {
	ctx, span := s.startSpan(ctx, "GetProgressNutrition", userID)
	defer span.End()

	target, err := s.lockedEnsureToday(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	dto := inbound.NewTotalNutritionDTO(nutrition.CalculateTotalNutrition(*target))
	return &dto, nil
}

// DeleteAllHistory removes every history entry of one user
func (s *TrackerService) DeleteAllHistory(ctx context.Context, userID uuid.UUID) (*inbound.DeleteResultDTO, error) {
	ctx, span := s.startSpan(ctx, "DeleteAllHistory", userID)
	defer span.End()

	count, err := s.history.DeleteByUserID(ctx, userID)
	if err != nil {
		return nil, fail(span, apperrors.NewDatabaseError("delete history", err))
	}

	s.metrics.HistoryDeleted(count)
	s.logger.Info("History deleted", zap.String("user_id", userID.String()), zap.Int64("count", count))
	return &inbound.DeleteResultDTO{Count: count}, nil
}

// FoodRecommendation suggests three dishes for the remaining allowance
func (s *TrackerService) FoodRecommendation(ctx context.Context, userID uuid.UUID) (*inbound.RecommendationDTO, error) {
	ctx, span := s.startSpan(ctx, "FoodRecommendation", userID)
	defer span.End()

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fail(span, s.storeError(err, userID, "load profile"))
	}

	target, err := s.lockedEnsureToday(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}

	rec, err := s.recommender.Recommend(ctx, userID, nutrition.CalculateTotalNutrition(*target), profile.Allergies)
	if err != nil {
		return nil, fail(span, err)
	}
	return inbound.NewRecommendationDTO(rec), nil
}

// ensureToday applies the daily reset policy and returns the current target.
// The caller must hold the user lock.
func (s *TrackerService) ensureToday(ctx context.Context, userID uuid.UUID) (*nutrition.Target, error) {
	target, err := s.targets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, userID, "load nutrition target")
	}

	now := s.config.Now()
	if !nutrition.NeedsReset(target.UpdatedAt, now, s.config.Location) {
		return target, nil
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, userID, "load profile")
	}

	baseline, err := nutrition.CalculateDailyNutrition(*profile, now)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error()).
			WithCause(err).
			WithMetadata("user_id", userID.String())
	}

	dayStart, dayEnd := nutrition.DayBounds(now, s.config.Location)
	reset, err := s.targets.ResetIfStale(ctx, userID, baseline, dayStart.UTC(), dayEnd.UTC(), now.UTC())
	if err != nil {
		return nil, s.storeError(err, userID, "reset nutrition target")
	}
	if reset {
		s.metrics.DailyReset()
		s.logger.Info("Daily nutrition target reset",
			zap.String("user_id", userID.String()),
			zap.Float64("daily_calorie", baseline.Calorie))
	}

	target, err = s.targets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, userID, "reload nutrition target")
	}
	return target, nil
}

func (s *TrackerService) lockedEnsureToday(ctx context.Context, userID uuid.UUID) (*nutrition.Target, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.ensureToday(ctx, userID)
}

func (s *TrackerService) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, userID)
	if err != nil {
		s.logger.Warn("Could not acquire user lock", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.NewAppError(
			apperrors.CodeServiceUnavailable,
			"Another request for this user is still running",
			"Please retry shortly",
		).WithCause(err)
	}
	return unlock, nil
}

// archiveImage stores the photo and returns its URL. Failures only cost
// the link, so they are logged and swallowed.
func (s *TrackerService) archiveImage(ctx context.Context, key string, image *outbound.InlineImage) string {
	url, err := s.images.Put(ctx, key, image.Data, image.MimeType)
	if err != nil {
		s.logger.Warn("Failed to archive meal image", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

// discardImage removes a photo whose meal was not recorded. The request
// context may already be cancelled, so cleanup gets its own deadline.
func (s *TrackerService) discardImage(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to remove orphaned meal image", zap.String("key", key), zap.Error(err))
	}
}

// storeError maps repository errors to application errors
func (s *TrackerService) storeError(err error, userID uuid.UUID, operation string) error {
	switch {
	case errors.Is(err, nutrition.ErrProfileNotFound):
		return apperrors.NewProfileNotFoundError(userID.String()).WithCause(err)
	case errors.Is(err, nutrition.ErrTargetNotFound):
		return apperrors.NewTargetNotFoundError(userID.String()).WithCause(err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewDatabaseError(operation, err)
}

func (s *TrackerService) startSpan(ctx context.Context, name string, userID uuid.UUID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "tracker."+name, trace.WithAttributes(attribute.String("user.id", userID.String())))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	default:
		return ".jpg"
	}
}
