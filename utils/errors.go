package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError is returned before any processing when the supplied options cannot
// describe a runnable pipeline.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return "invalid configuration for " + e.Field + ": " + e.Reason
}

// NewConfigurationError is used when a configuration field holds an unusable value.
func NewConfigurationError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether any error in err's chain is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// ShapeMismatchError signals a broken contract between pipeline stages, such as a classifier
// returning a different number of scores than windows it was given.
type ShapeMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: expected %d but got %d", e.What, e.Expected, e.Actual)
}

// NewShapeMismatchError is used when a stage receives data that does not fit the expected shape.
func NewShapeMismatchError(what string, expected, actual int) error {
	return &ShapeMismatchError{What: what, Expected: expected, Actual: actual}
}

// IsShapeMismatchError reports whether any error in err's chain is a ShapeMismatchError.
func IsShapeMismatchError(err error) bool {
	var target *ShapeMismatchError
	return errors.As(err, &target)
}

// InvalidScoreError is returned when a classifier produces a score that is not a number.
type InvalidScoreError struct {
	Index int
	Value float64
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("classifier returned invalid score %v for window %d", e.Value, e.Index)
}

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}
