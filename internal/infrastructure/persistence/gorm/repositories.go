// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ outbound.ProfileRepository   = (*ProfileRepository)(nil)
	_ outbound.NutritionRepository = (*NutritionRepository)(nil)
	_ outbound.HistoryRepository   = (*HistoryRepository)(nil)
)

// ProfileRepository implements the profile repository interface using GORM
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByUserID finds a profile by user ID
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*nutrition.Profile, error) {
	var model UserProfileModel

	result := conn(ctx, r.db).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nutrition.ErrProfileNotFound
		}
		return nil, result.Error
	}

	return ModelToProfile(&model), nil
}

// Save upserts a profile
func (r *ProfileRepository) Save(ctx context.Context, p *nutrition.Profile) error {
	return conn(ctx, r.db).Save(ProfileToModel(p)).Error
}

// NutritionRepository implements the nutrition target repository using GORM
type NutritionRepository struct {
	db *gorm.DB
}

// NewNutritionRepository creates a new nutrition target repository
func NewNutritionRepository(db *gorm.DB) *NutritionRepository {
	return &NutritionRepository{db: db}
}

// FindByUserID finds the target row of a user
func (r *NutritionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*nutrition.Target, error) {
	var model NutritionTargetModel

	result := conn(ctx, r.db).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nutrition.ErrTargetNotFound
		}
		return nil, result.Error
	}

	return ModelToTarget(&model), nil
}

// ResetIfStale overwrites the target with baseline when updated_at is
// outside [dayStart, dayEnd). The predicate lives in the UPDATE so two
// concurrent callers cannot both reset.
func (r *NutritionRepository) ResetIfStale(ctx context.Context, userID uuid.UUID, baseline nutrition.Macros, dayStart, dayEnd, now time.Time) (bool, error) {
	db := conn(ctx, r.db)

	result := db.Model(&NutritionTargetModel{}).
		Where("user_id = ? AND (updated_at < ? OR updated_at >= ?)", userID, dayStart.UTC(), dayEnd.UTC()).
		Updates(map[string]interface{}{
			"daily_calorie":      baseline.Calorie,
			"daily_carbohydrate": baseline.Carbohydrate,
			"daily_sugar":        baseline.Sugar,
			"daily_fat":          baseline.Fat,
			"daily_protein":      baseline.Protein,
			"updated_at":         now.UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("reset target: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	exists, err := r.exists(db, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nutrition.ErrTargetNotFound
	}
	return false, nil
}

// Consume subtracts a meal with a single UPDATE
func (r *NutritionRepository) Consume(ctx context.Context, userID uuid.UUID, meal nutrition.Macros, now time.Time) error {
	result := conn(ctx, r.db).Model(&NutritionTargetModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_calorie":      gorm.Expr("daily_calorie - ?", meal.Calorie),
			"daily_carbohydrate": gorm.Expr("daily_carbohydrate - ?", meal.Carbohydrate),
			"daily_sugar":        gorm.Expr("daily_sugar - ?", meal.Sugar),
			"daily_fat":          gorm.Expr("daily_fat - ?", meal.Fat),
			"daily_protein":      gorm.Expr("daily_protein - ?", meal.Protein),
			"updated_at":         now.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("consume meal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nutrition.ErrTargetNotFound
	}
	return nil
}

// Save upserts a target row
func (r *NutritionRepository) Save(ctx context.Context, t *nutrition.Target) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(TargetToModel(t)).Error
}

func (r *NutritionRepository) exists(db *gorm.DB, userID uuid.UUID) (bool, error) {
	var count int64
	if err := db.Model(&NutritionTargetModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HistoryRepository implements the history repository using GORM
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, entry *nutrition.HistoryEntry) error {
	result := conn(ctx, r.db).Create(HistoryToModel(entry))
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return apperrors.NewDuplicateHistoryError(entry.ID.String()).WithCause(result.Error)
		}
		return result.Error
	}
	return nil
}

// FindAll lists every entry, oldest first
func (r *HistoryRepository) FindAll(ctx context.Context) ([]*nutrition.HistoryEntry, error) {
	var models []HistoryModel
	if err := conn(ctx, r.db).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

// FindByUserID lists one user's entries, oldest first
func (r *HistoryRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*nutrition.HistoryEntry, error) {
	var models []HistoryModel
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

// DeleteByUserID removes every entry of one user
func (r *HistoryRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Where("user_id = ?", userID).Delete(&HistoryModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func toEntries(models []HistoryModel) []*nutrition.HistoryEntry {
	entries := make([]*nutrition.HistoryEntry, 0, len(models))
	for i := range models {
		entries = append(entries, ModelToHistory(&models[i]))
	}
	return entries
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
