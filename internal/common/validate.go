package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields, and
// runs struct validation on the result.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return NewValidationError("request body is required", nil)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return NewAppError(CodeTooLarge, "request entity too large", http.StatusRequestEntityTooLarge, err)
		}
		appErr := NewValidationError("invalid request body", map[string]any{"error": err.Error()})
		appErr.Err = err
		return appErr
	}
	return Validate(dst)
}

// Validate runs struct validation and converts failures into a validation AppError.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fieldPath(fe)] = validationMessage(fe)
			}
			return NewValidationError("validation failed", details)
		}
		return NewValidationError("validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "hexcolor":
		return "must be a hex color"
	}
	return "is invalid"
}
