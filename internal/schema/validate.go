package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/shramba/internal/model"
)

// validate is shared by payload and input validation. Initialized in init()
// with the custom rules below.
var validate *validator.Validate

var (
	hexColor  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	shadeCode = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,31}$`)
)

func init() {
	validate = validator.New()

	// Report struct fields by their JSON names so callers can map errors to form inputs.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = validate.RegisterValidation("notblank", validateNotBlank)
	_ = validate.RegisterValidation("colorcode", validateColorCode)
}

// validateNotBlank rejects strings that are empty after trimming.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateColorCode accepts a hex color (#abc, #aabbcc) or a manufacturer
// shade code made of letters, digits and dashes.
func validateColorCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return hexColor.MatchString(code) || shadeCode.MatchString(code)
}

// Struct validates an input struct by its `validate` tags and returns every
// failing field.
func Struct(s any) []model.FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.FieldError{{Field: "input", Message: err.Error()}}
	}
	out := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

// checkRules rejects rule strings the validator cannot run. validator panics on
// undefined tags and malformed params, so the probe recovers.
func checkRules(tag string, t FieldType) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rules %q: %v", tag, r)
		}
	}()
	var probe any
	switch t {
	case TypeNumber, TypeInteger:
		probe = 0.0
	case TypeBoolean:
		probe = false
	default:
		probe = ""
	}
	_ = validate.Var(probe, tag)
	return nil
}

// checkValue applies a rule string to one decoded JSON value.
func checkValue(value any, tag string) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = []string{fmt.Sprintf("cannot apply rules %q", tag)}
		}
	}()

	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return msgs
}

// describe turns a validator failure into a short human message.
func describe(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min", "gte":
		if isString {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max", "lte":
		if isString {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be a date in the form " + fe.Param()
	case "colorcode":
		return "must be a hex color or a shade code"
	case "url", "http_url":
		return "must be a URL"
	case "uuid", "uuid4":
		return "must be a UUID"
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}
