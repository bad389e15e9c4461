// Package validation wraps go-playground/validator with the request rules
// used by the HTTP handlers.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"hydro360/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed rule of a request.
type RequestValidationError struct {
	errors []FieldError
}

func (ve *RequestValidationError) Errors() []FieldError {
	return ve.errors
}

// First returns the message of the first failed rule.
func (ve *RequestValidationError) First() string {
	if len(ve.errors) == 0 {
		return "Validation failed"
	}
	return ve.errors[0].Message
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the shared validator with the custom rules registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		mustRegister("password", func(fl validator.FieldLevel) bool { return StrongPassword(fl.Field().String()) })
		mustRegister("phone", func(fl validator.FieldLevel) bool { return ValidPhone(fl.Field().String()) })
		mustRegister("reporttype", func(fl validator.FieldLevel) bool { return models.ValidReportType(fl.Field().String()) })
		mustRegister("priority", func(fl validator.FieldLevel) bool { return models.ValidPriority(fl.Field().String()) })
		mustRegister("status", func(fl validator.FieldLevel) bool { return models.ValidStatus(fl.Field().String()) })
		mustRegister("role", func(fl validator.FieldLevel) bool { return models.ValidRole(fl.Field().String()) })
		mustRegister("permission", func(fl validator.FieldLevel) bool {
			return models.ValidPermission(fl.Field().String())
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// ValidateStruct runs the struct tags of s. It returns nil when s is valid.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}
	out := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		out[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: translateError(fe)}
	}
	return &RequestValidationError{errors: out}
}

// StrongPassword requires at least 8 characters with an upper-case letter,
// a lower-case letter and a digit.
func StrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidPhone accepts 7 to 15 digits with an optional leading plus.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"email":      "%s must be a valid email address",
	"latitude":   "%s must be a valid latitude (-90 to 90)",
	"longitude":  "%s must be a valid longitude (-180 to 180)",
	"password":   "%s must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number",
	"phone":      "%s must be a valid phone number",
	"reporttype": "%s is not a valid report type",
	"priority":   "%s is not a valid priority",
	"status":     "%s is not a valid status",
	"role":       "%s is not a valid role",
	"permission": "%s contains an unknown permission",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
