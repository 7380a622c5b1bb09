// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nutriscan/tracker/internal/infrastructure/http/middleware"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.uber.org/zap"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

var validate = newValidator()

// newValidator reports JSON field names instead of Go field names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError renders err. Anything that is not an AppError is logged and
// returned as an opaque internal error.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		logger.Error("Unhandled error", zap.Error(err), zap.String("path", r.URL.Path))
		appErr = apperrors.NewInternalError("An unexpected error occurred")
	} else if appErr.StatusCode() >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("code", string(appErr.Code)),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	middleware.WriteError(w, r, appErr, 0)
}

// decodeJSON decodes and validates a request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewBadRequestError(fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		}
		return apperrors.NewBadRequestError("Invalid JSON payload").WithCause(err)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewValidationError(err.Error())
		}
		out := make([]apperrors.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, apperrors.ValidationError{
				Field:   fieldPath(fe),
				Tag:     fe.Tag(),
				Message: validationMessage(fe),
			})
		}
		return apperrors.NewValidationErrors(out)
	}
	return nil
}

// fieldPath drops the top-level struct name, e.g. "image.data"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath(fe))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fieldPath(fe), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldPath(fe), fe.Tag())
	}
}
