package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	wrapped := fmt.Errorf("document 12: fields: %w", New(ErrMissingField, "name must not be null"))
	assert.True(t, IsValidation(wrapped))
	assert.True(t, IsValidation(Newf(ErrInvalidValue, "lat: %s", "abc")))
	assert.False(t, IsValidation(New(ErrStore, "redis down")))
	assert.Equal(t, "missing mandatory field: name must not be null", errors.Unwrap(wrapped).Error())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("x.csv: %w", New(ErrMissingDecoder, ".csv"))))
	assert.Equal(t, 2, ExitCode(New(ErrInvalidConfig, "bad")))
	assert.Equal(t, 1, ExitCode(errors.New("chunk 3: connection reset")))
}
