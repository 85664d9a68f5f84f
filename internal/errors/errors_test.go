package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := DataNotFound("/tmp/missing.csv")
	wrapped := Wrap(base, "failed to load dataset")

	assert.Equal(t, CodeDataNotFound, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, CodeDataNotFound))
	assert.True(t, IsFatalInput(wrapped))
	assert.Contains(t, wrapped.Error(), "/tmp/missing.csv")
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("trial 3: %w", InsufficientFeatures(1, 2))

	assert.True(t, HasCode(err, CodeInsufficientFeatures))
	assert.False(t, IsFatalInput(err))
	assert.Equal(t, CodeInsufficientFeatures, GetCode(err))
}

func TestWrapPlainError(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), "engine call")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestSizeMismatchIsFatal(t *testing.T) {
	err := SizeMismatch(100, 90)
	assert.True(t, IsFatalInput(err))
	assert.Contains(t, err.Error(), "100 vs 90")
}
