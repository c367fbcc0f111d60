// Package validator wraps go-playground/validator for request structs.
//
// Failures are returned as a joined error whose first member is ErrValidationFailed, which
// itself matches errs.ErrValidation, followed by one message per offending field.
package validator

import (
	"errors"
	"fmt"

	"github.com/canopy-network/tokenscope/pkg/errs"
	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is the first error of every chain returned by Validate.
var ErrValidationFailed = fmt.Errorf("request validation failed: %w", errs.ErrValidation)

var validator *gvalidator.Validate

const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())
}

func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		out = append(out, fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		))
	}

	return errors.Join(out...)
}

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
