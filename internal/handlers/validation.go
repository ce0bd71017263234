package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var decadePattern = regexp.MustCompile(`^[0-9]{3}0s$`)

// NewValidator returns a validator that reports JSON field names and also
// understands the "decade" tag ("1990s").
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("decade", func(fl validator.FieldLevel) bool {
		return decadePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "decade":
			parts = append(parts, fmt.Sprintf("%s must look like 1990s", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
