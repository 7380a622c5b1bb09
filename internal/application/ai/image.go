package ai

import (
	"encoding/base64"
	"strings"

	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
)

// DefaultMimeType is assumed when the caller does not declare one.
const DefaultMimeType = "image/jpeg"

var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// DecodeImage validates a base64 image. A data URI prefix such as
// "data:image/png;base64," is stripped and its MIME type takes precedence.
func DecodeImage(encoded, mimeType string) (*outbound.InlineImage, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma == -1 {
			return nil, apperrors.NewValidationError("malformed data URI")
		}
		header := encoded[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, apperrors.NewValidationError("data URI must be base64 encoded")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = encoded[comma+1:]
	}

	if encoded == "" {
		return nil, apperrors.NewValidationError("image is required")
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	if !supportedMimeTypes[mimeType] {
		return nil, apperrors.NewValidationError("unsupported image type " + mimeType).
			WithMetadata("mime_type", mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some clients send unpadded or URL-safe base64.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
		}
		if err != nil {
			return nil, apperrors.NewValidationError("image is not valid base64").WithCause(err)
		}
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("image is empty")
	}

	return &outbound.InlineImage{MimeType: mimeType, Data: data}, nil
}
