// Package inbox stores the public contact messages and reservation requests
// and gives the admin panel its views over them.
package inbox

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalid  = errors.New("invalid submission")
	ErrNotFound = errors.New("not found")
)

// ValidationError names the first offending field with a message fit for
// the visitor.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var reasons = map[string]string{
	"required": "és obligatori",
	"email":    "no és una adreça de correu vàlida",
	"max":      "és massa llarg",
	"min":      "és massa curt",
	"datetime": "no té un format vàlid",
	"e164":     "no és un telèfon vàlid",
}

func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	fe := verrs[0]
	reason, ok := reasons[fe.Tag()]
	if !ok {
		reason = "no és vàlid"
	}
	return invalid(fe.Field(), reason)
}
