package jsonable

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Document errors
	ErrValueMustBeArray = errors.New("jsonable value must be an array")
	ErrInvalidSchema    = errors.New("invalid schema")
	ErrFieldNotJsonable = errors.New("field is not jsonable")

	// Record errors
	ErrNotFound           = errors.New("record not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrLockHeld           = errors.New("lock held by another process")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// IsValueMustBeArray reports whether a raw field value could not be read as a collection
func IsValueMustBeArray(err error) bool {
	return errors.Is(err, ErrValueMustBeArray)
}

// IsInvalidSchema reports whether Add was called with arguments the schema cannot shape
func IsInvalidSchema(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsLockHeld reports whether a record lock could not be acquired
func IsLockHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}
