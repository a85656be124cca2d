// Package validator configures go-playground/validator for request DTOs.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// rules are the tags every DTO may use on top of the built-in ones.
var rules = map[string]validator.Func{
	// notblank rejects strings that are empty once trimmed
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
}

// Validator is shared by every module; the underlying engine caches struct
// metadata, so one instance per process is enough.
type Validator struct {
	engine *validator.Validate
}

func New() *Validator {
	engine := validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	for tag, fn := range rules {
		if err := engine.RegisterValidation(tag, fn); err != nil {
			panic("validator: register " + tag + ": " + err.Error())
		}
	}
	return &Validator{engine: engine}
}

// Struct validates s against its validate tags.
func (v *Validator) Struct(s interface{}) error {
	return v.engine.Struct(s)
}

// FieldErrors maps each failing JSON field to the tag it failed. It returns
// nil when err is not a validation failure.
func FieldErrors(err error) map[string]string {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return nil
	}
	out := make(map[string]string, len(failures))
	for _, fe := range failures {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
