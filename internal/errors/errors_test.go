package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Format(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] beneficiary not found", New(ErrNotFound, "beneficiary not found").Error())

	wrapped := Wrap(ErrDatabase, "save beneficiary", stderrors.New("disk full"))
	assert.Equal(t, "[DATABASE_ERROR] save beneficiary: disk full", wrapped.Error())
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("handler: %w", Wrap(ErrDatabase, "save beneficiary", cause))

	assert.True(t, Is(err, ErrDatabase))
	assert.False(t, Is(err, ErrValidation))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrDatabase, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("boom")))
	assert.False(t, Is(nil, ErrInternal))
}
