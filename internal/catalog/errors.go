package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/user/vidcatalog/internal/store"
)

// ErrNotFound is returned when a video does not exist, or is not visible to the caller
var ErrNotFound = store.ErrNotFound

// ValidationError reports caller input that cannot be accepted
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// UploadSubmissionError wraps a provider failure while submitting a remote fetch.
// No catalog row exists when it is returned.
type UploadSubmissionError struct {
	URL string
	Err error
}

func (e *UploadSubmissionError) Error() string {
	return fmt.Sprintf("failed to submit remote upload: %v", e.Err)
}

func (e *UploadSubmissionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match the form fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct validation and reduces the first failure to a ValidationError
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "url":
		msg = "must be a valid URL"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		msg = "is invalid"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}
