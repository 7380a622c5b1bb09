package ai

import (
	"encoding/base64"
	"testing"

	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"github.com/nutriscan/tracker/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	t.Run("DefaultsToJPEG", func(t *testing.T) {
		img, err := DecodeImage(testutils.TinyJPEGBase64, "")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", img.MimeType)
		assert.Equal(t, testutils.TinyJPEG, img.Data)
	})

	t.Run("DataURIOverridesDeclaredType", func(t *testing.T) {
		img, err := DecodeImage("data:image/png;base64,"+testutils.TinyJPEGBase64, "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType)
	})

	t.Run("JPGAlias", func(t *testing.T) {
		img, err := DecodeImage(testutils.TinyJPEGBase64, "IMAGE/JPG")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", img.MimeType)
	})

	t.Run("UnpaddedBase64", func(t *testing.T) {
		raw := base64.RawStdEncoding.EncodeToString([]byte("abcd"))
		img, err := DecodeImage(raw, "image/webp")
		require.NoError(t, err)
		assert.Equal(t, []byte("abcd"), img.Data)
	})

	invalid := map[string][2]string{
		"empty":             {"", "image/jpeg"},
		"not base64":        {"%%%not-base64%%%", "image/jpeg"},
		"unsupported type":  {testutils.TinyJPEGBase64, "application/pdf"},
		"data URI no comma": {"data:image/png;base64", ""},
		"data URI not b64":  {"data:image/png," + testutils.TinyJPEGBase64, ""},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImage(in[0], in[1])
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidationFailed))
		})
	}
}
