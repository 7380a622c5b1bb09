package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/infrastructure/http/middleware"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.uber.org/zap"
)

// TokenRevoker invalidates the caller's token on logout
type TokenRevoker interface {
	RevokeToken(ctx context.Context, claims *security.Claims) error
}

// TrackerHandlers handles the tracker REST API
type TrackerHandlers struct {
	tracker inbound.TrackerService
	tokens  TokenRevoker
	logger  *zap.Logger
}

// NewTrackerHandlers creates tracker handlers
func NewTrackerHandlers(tracker inbound.TrackerService, tokens TokenRevoker, logger *zap.Logger) *TrackerHandlers {
	return &TrackerHandlers{
		tracker: tracker,
		tokens:  tokens,
		logger:  logger.Named("tracker-api"),
	}
}

// TrackMealRequest is the body of POST /tracker/meals
type TrackMealRequest struct {
	Base64Image string `json:"base64Image" validate:"required"`
	MimeType    string `json:"mimeType,omitempty"`
}

// DescribeRequest is the body of POST /tracker/describe
type DescribeRequest struct {
	Image ImagePayload `json:"image" validate:"required"`
}

// ImagePayload is an inline base64 image
type ImagePayload struct {
	Data     string `json:"data" validate:"required"`
	MimeType string `json:"mimeType,omitempty"`
}

// DescribeResponse wraps the model's description
type DescribeResponse struct {
	Description string `json:"description"`
}

// TrackMeal handles POST /api/v1/tracker/meals
func (h *TrackerHandlers) TrackMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req TrackMealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.tracker.CalorieTracker(r.Context(), userID, inbound.TrackMealCommand{
		Base64Image: req.Base64Image,
		MimeType:    req.MimeType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, APIResponse{
		Success: true,
		Data:    result,
		Message: "Meal recorded",
	})
}

// DescribeImage handles POST /api/v1/tracker/describe
func (h *TrackerHandlers) DescribeImage(w http.ResponseWriter, r *http.Request) {
	var req DescribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	text, err := h.tracker.ImageTracker(r.Context(), inbound.DescribeImageCommand{
		Data:     req.Image.Data,
		MimeType: req.Image.MimeType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: DescribeResponse{Description: text}})
}

// ListAllHistory handles GET /api/v1/history
func (h *TrackerHandlers) ListAllHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tracker.GetAllHistory(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: entries})
}

// MyHistory handles GET /api/v1/history/me
func (h *TrackerHandlers) MyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	entries, err := h.tracker.GetHistoryByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: entries})
}

// DeleteMyHistory handles DELETE /api/v1/history/me
func (h *TrackerHandlers) DeleteMyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	result, err := h.tracker.DeleteAllHistory(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
		Message: "History deleted",
	})
}

// DailyNutrition handles GET /api/v1/nutrition/daily
func (h *TrackerHandlers) DailyNutrition(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	daily, err := h.tracker.GetDailyNutrition(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: daily})
}

// Progress handles GET /api/v1/nutrition/progress
func (h *TrackerHandlers) Progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	total, err := h.tracker.GetProgressNutrition(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: total})
}

// Recommendations handles GET /api/v1/recommendations
func (h *TrackerHandlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	rec, err := h.tracker.FoodRecommendation(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Data: rec})
}

// Logout handles POST /api/v1/auth/logout by revoking the presented token
func (h *TrackerHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), claims); err != nil {
		writeError(w, r, h.logger, apperrors.NewAppError(
			apperrors.CodeServiceUnavailable,
			"Logout is temporarily unavailable",
			"",
		).WithCause(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, APIResponse{Success: true, Message: "Logged out"})
}

func (h *TrackerHandlers) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperrors.NewUnauthorizedError("User not authenticated"))
	}
	return userID, ok
}
