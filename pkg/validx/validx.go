// Package validx wraps go-playground/validator with the rules shared by the
// identity backend and its clients.
package validx

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Username rules: 3 to 24 characters of letters, digits and underscores.
const (
	UsernameMin = 3
	UsernameMax = 24
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidUsername reports whether s satisfies the username rule.
func ValidUsername(s string) bool {
	return len(s) >= UsernameMin && len(s) <= UsernameMax && usernamePattern.MatchString(s)
}

// New returns a validator with the "username" tag registered and field
// names reported by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	return v
}

// Message turns the first validation failure into a user-facing sentence.
// Non-validation errors are returned as-is.
func Message(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		if err == nil {
			return ""
		}
		return err.Error()
	}

	first := ve[0]
	field := first.Field()
	switch first.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "username":
		return fmt.Sprintf("%s must be %d-%d characters of letters, digits or underscores", field, UsernameMin, UsernameMax)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, first.Param())
	case "max":
		if first.Kind() == reflect.Slice {
			return fmt.Sprintf("%s allows at most %s entries", field, first.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, first.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}
