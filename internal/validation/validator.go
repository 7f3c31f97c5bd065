// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared because it caches struct metadata.
// Field names in error messages use the json tag so they match request bodies.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min", "gte":
		return fmt.Sprintf("%s must be >= %s", e.Field, e.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be <= %s", e.Field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field, e.Param)
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field)
	case "url":
		return fmt.Sprintf("%s must be a valid url", e.Field)
	case "calendar_date":
		return fmt.Sprintf("%s must be formatted as YYYY-MM-DD", e.Field)
	case "clock_time":
		return fmt.Sprintf("%s must be formatted as HH:MM", e.Field)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

// Errors is returned by Struct when one or more fields fail.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return strings.Join(msgs, "; ")
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		mustRegister("calendar_date", layoutValidator("2006-01-02"))
		mustRegister("clock_time", layoutValidator("15:04"))
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		_, err := time.Parse(layout, value)
		return err == nil
	}
}

// Struct validates s and returns Errors for rule failures.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}
