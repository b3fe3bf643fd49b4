// Package validation configures the shared validator and converts its
// failures into field-level API errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

var (
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	personNamePattern = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)
	phonePattern      = regexp.MustCompile(`^[+]?[0-9]{6,15}$`)
)

// New returns a validator with the custom tags used by request payloads and
// json field names reported in errors.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", matchString(usernamePattern))
	_ = v.RegisterValidation("personname", matchString(personNamePattern))
	_ = v.RegisterValidation("phone", matchString(phonePattern))
	return v
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Details maps each failing field to a readable message.
func Details(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return details
}

// Wrap converts a validator failure into a VALIDATION_ERROR with field details.
func Wrap(err error, message string) *appErrors.Error {
	appErr := appErrors.WithDetails(appErrors.ErrValidation, message, Details(err))
	appErr.Err = err
	return appErr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		if fe.Param() == "" {
			return "must be present or future"
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		if fe.Param() == "" {
			return "must be in the future"
		}
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		if fe.Param() == "" {
			return "must be past or present"
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "username":
		return "may only contain letters, digits and underscores"
	case "personname":
		return "may only contain letters and spaces"
	case "phone":
		return "must be 6 to 15 digits with an optional leading +"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
