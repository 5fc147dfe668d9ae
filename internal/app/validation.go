package app

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()

	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	mobileNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match the request body.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tag rules and converts the first failure to a validation error.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError("%s is required", fe.Field())
	case "email":
		return validationError("%s must be a valid email address", fe.Field())
	case "min":
		return validationError("%s must be at least %s characters", fe.Field(), fe.Param())
	case "len":
		return validationError("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "gt":
		return validationError("%s must be greater than %s", fe.Field(), fe.Param())
	case "url":
		return validationError("%s must be a valid URL", fe.Field())
	case "uuid":
		return validationError("%s must be a valid id", fe.Field())
	default:
		return validationError("%s is invalid", fe.Field())
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validMobile strips spaces, dashes and parentheses before matching.
func validMobile(mobile string) bool {
	return mobilePattern.MatchString(mobileNoise.Replace(mobile))
}

// digitsOnly keeps ASCII 0-9 only, so the result's byte length is its digit count.
func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
