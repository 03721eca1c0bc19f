package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRatingMediaType(t *testing.T) {
	assert.Equal(t, "image/png", NormalizeRatingMediaType("image/png"))
	assert.Equal(t, "image/heic", NormalizeRatingMediaType(" IMAGE/HEIC "))
	assert.Equal(t, "image/jpeg", NormalizeRatingMediaType("image/tiff"))
	assert.Equal(t, "image/jpeg", NormalizeRatingMediaType(""))
	assert.Equal(t, "image/jpeg", NormalizeRatingMediaType("application/pdf"))
}

func TestNormalizeAnalysisMediaType(t *testing.T) {
	assert.Equal(t, "image/webp", NormalizeAnalysisMediaType("image/webp"))
	// heic passes the rating list but not the analysis one
	assert.Equal(t, "image/jpeg", NormalizeAnalysisMediaType("image/heic"))
	assert.Equal(t, "image/jpeg", NormalizeAnalysisMediaType("image/heif"))
	assert.Equal(t, "image/jpeg", NormalizeAnalysisMediaType("garbage"))
}

func TestStrPointer(t *testing.T) {
	assert.Nil(t, StrPointer(""))
	p := StrPointer("value")
	assert.NotNil(t, p)
	assert.Equal(t, "value", *p)
}
