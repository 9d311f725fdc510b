// Package validate wraps a shared validator instance for request binding.
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		var errs validator.ValidationErrors
		if ok := isValidationErrors(err, &errs); ok && len(errs) > 0 {
			f := errs[0]
			return fmt.Errorf("field %q failed on %q", f.Field(), f.Tag())
		}
		return err
	}
	return nil
}

func isValidationErrors(err error, out *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*out = ve
	}
	return ok
}
