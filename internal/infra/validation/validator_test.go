package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/middleware"
)

type sample struct {
	Name     string `validate:"required"`
	Capacity int    `validate:"min=1"`
}

func TestValidatorCollectsFieldErrors(t *testing.T) {
	err := New().Validate(context.Background(), sample{Capacity: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, middleware.ErrValidation)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []FieldError{{Field: "Name", Rule: "required"}, {Field: "Capacity", Rule: "min"}}, verr.Fields)
}

func TestValidatorAcceptsValidAndNonStructMessages(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(context.Background(), sample{Name: "Suite", Capacity: 2}))
	assert.NoError(t, v.Validate(context.Background(), "not a struct"))
}
