// Package validation checks request payloads and reports field-level failures.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field of a payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SelfValidator is implemented by payloads with rules that struct tags cannot express
type SelfValidator interface {
	Validate(now time.Time) []FieldError
}

// Normalizer is implemented by payloads that clean up their input, such as
// trimming whitespace, before validation
type Normalizer interface {
	Normalize()
}

// Now is the clock used by time-relative rules
var Now = time.Now

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return IsFuture(t)
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// IsFuture reports whether t is strictly after the current time
func IsFuture(t time.Time) bool {
	return t.After(Now())
}

// Struct validates a payload and returns every field failure, or nil if it is valid
func Struct(payload any) []FieldError {
	var fieldErrors []FieldError

	if err := validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []FieldError{{Field: "body", Message: "Invalid request body"}}
		}
		for _, fe := range verrs {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   fe.Field(),
				Message: message(fe),
			})
		}
	}

	if sv, ok := payload.(SelfValidator); ok {
		fieldErrors = append(fieldErrors, sv.Validate(Now())...)
	}

	return fieldErrors
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s cannot be more than %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return "Please provide a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(strings.Fields(fe.Param()), ", "))
	case "future":
		return "Due date must be in the future"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
