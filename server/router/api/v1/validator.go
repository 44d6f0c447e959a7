package v1

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// blockedTopicKeywords are rejected by the public topic endpoints.
var blockedTopicKeywords = []string{"kill", "murder", "harm", "violence", "illegal", "criminal"}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("safetopic", func(fl validator.FieldLevel) bool {
		return !containsBlockedKeyword(fl.Field().String())
	})
	return &requestValidator{validate: validate}
}

func containsBlockedKeyword(topic string) bool {
	lower := strings.ToLower(topic)
	for _, keyword := range blockedTopicKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Validate returns the first failing field as a readable message.
func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	fe := validationErrors[0]
	switch fe.Tag() {
	case "required":
		return errors.Errorf("%s is required", fe.Field())
	case "email":
		return errors.New("invalid email format")
	case "min":
		return errors.Errorf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return errors.Errorf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "safetopic":
		return errors.New("inappropriate topic detected")
	}
	return errors.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
}
