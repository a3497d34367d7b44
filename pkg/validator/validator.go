package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one failed rule, keyed by the field's JSON name.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationErrors collects every failed rule of a payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, failure := range v {
		parts[i] = failure.Field + " failed on " + failure.Tag
		if failure.Param != "" {
			parts[i] += "=" + failure.Param
		}
	}
	return strings.Join(parts, "; ")
}

// Empty strings pass both rules; pair them with required when a value is mandatory.
var rules = map[string]func(value string) bool{
	// clock accepts a 24h "HH:MM" time of day, as stored for quiet hours.
	"clock": func(value string) bool {
		_, err := time.Parse("15:04", value)
		return err == nil
	},
	// tz accepts an IANA zone name.
	"tz": func(value string) bool {
		_, err := time.LoadLocation(value)
		return err == nil
	},
}

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidateStruct runs the struct's validate tags. Rule failures come back as ValidationErrors.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	failures := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return failures
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		for tag, rule := range rules {
			rule := rule
			_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				value := strings.TrimSpace(fl.Field().String())
				return value == "" || rule(value)
			})
		}
	})
	return validate
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
