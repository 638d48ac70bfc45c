package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalid(t *testing.T) {
	err := Invalid("duration must be between %d and %d", 1, 480)
	assert.Equal(t, "duration must be between 1 and 480", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(fmt.Errorf("create: %w", err), ErrInvalidInput))
}

func TestNotFound(t *testing.T) {
	err := NotFound("goal", "g1")
	assert.Equal(t, "goal g1: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
