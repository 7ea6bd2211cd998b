package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"innkeep/internal/app/middleware"
)

// FieldError names one failed constraint.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error carries every failed field and unwraps to middleware.ErrValidation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Rule)
	}
	return fmt.Sprintf("%s: %s", middleware.ErrValidation, strings.Join(parts, ", "))
}

func (e *Error) Unwrap() error { return middleware.ErrValidation }

// Validator adapts go-playground struct tags to the middleware port.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(ctx context.Context, message any) error {
	err := v.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", middleware.ErrValidation, err)
	}
	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

var _ middleware.Validator = (*Validator)(nil)
