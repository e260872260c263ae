package serrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BaseError is a coded error that can be compared with errors.Is by code.
type BaseError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	LocaleKey string `json:"locale_key,omitempty"`
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	return e.Message
}

// Is matches any BaseError carrying the same code.
func (e *BaseError) Is(target error) bool {
	var t *BaseError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e with a more specific message and the same code.
func (e *BaseError) WithMessage(format string, args ...any) *BaseError {
	return &BaseError{
		Code:      e.Code,
		Message:   fmt.Sprintf(format, args...),
		LocaleKey: e.LocaleKey,
	}
}

// CodeOf returns the code of the first BaseError in err's chain.
func CodeOf(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for field, msg := range v {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

func NewFieldRequiredError(field string) string {
	return fmt.Sprintf("%s is required", field)
}

// ProcessValidatorErrors flattens validator errors into field -> message pairs.
// fieldName maps a struct field to its display name; empty results fall back to the struct field.
func ProcessValidatorErrors(errs validator.ValidationErrors, fieldName func(field string) string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		name := fe.Field()
		if fieldName != nil {
			if mapped := fieldName(fe.StructField()); mapped != "" {
				name = mapped
			}
		}
		switch fe.Tag() {
		case "required":
			out[fe.StructField()] = NewFieldRequiredError(name)
		case "min":
			out[fe.StructField()] = fmt.Sprintf("%s must contain at least %s item(s)", name, fe.Param())
		case "oneof":
			out[fe.StructField()] = fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
		default:
			out[fe.StructField()] = fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
		}
	}
	return out
}
