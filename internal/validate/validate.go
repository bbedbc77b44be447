// Package validate wraps go-playground/validator with a single shared
// instance and error formatting that names the first failing field.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its struct tags.  On failure it returns an
// error naming the first offending field, lower-cased to match the form
// field names used on the wire.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ferrs validator.ValidationErrors
	if errors.As(err, &ferrs) && len(ferrs) > 0 {
		fe := ferrs[0]
		return fmt.Errorf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err
}
