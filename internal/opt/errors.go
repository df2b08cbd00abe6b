package opt

import (
	"errors"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrNoAvailability      = errors.New("no availability")
	ErrOptimizationTimeout = errors.New("optimization timed out")
)

// FieldError is one problem found in a request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Missing bool   `json:"-"`
}

// ValidationError collects every problem found while normalizing a request.
// It matches ErrValidation, and ErrMissingParameter when a required parameter is absent.
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		for _, p := range e.Problems {
			if !p.Missing {
				return true
			}
		}
	case ErrMissingParameter:
		for _, p := range e.Problems {
			if p.Missing {
				return true
			}
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) missing(field, msg string) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: msg, Missing: true})
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
