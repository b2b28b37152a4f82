package events

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is returned for missing or malformed form fields.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError lists the offending form fields. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []string
	msgs   []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.msgs, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Messages returns one human-readable sentence per failing field.
func (e *ValidationError) Messages() []string {
	return e.msgs
}

// newValidator reports fields by their HTML form name, so messages line
// up with what the user saw.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

// toValidationError converts validator output; any other error is
// returned unchanged.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, e := range verrs {
		out.Fields = append(out.Fields, e.Field())
		switch e.ActualTag() {
		case "required":
			out.msgs = append(out.msgs, fmt.Sprintf("field %s is required", e.Field()))
		case "datetime":
			out.msgs = append(out.msgs, fmt.Sprintf("field %s must be a date (YYYY-MM-DD)", e.Field()))
		case "min":
			out.msgs = append(out.msgs, fmt.Sprintf("field %s must be at least %s", e.Field(), e.Param()))
		default:
			out.msgs = append(out.msgs, fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}
	return out
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: []string{field}, msgs: []string{msg}}
}
