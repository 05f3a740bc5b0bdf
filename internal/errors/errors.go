// Package errors wraps the standard errors package and adds component
// tagging so failures can be attributed to a subsystem at the log boundary.
package errors

import (
	"errors"
	"fmt"
)

// Component names identify the subsystem an error originated in.
const (
	ComponentDatastore    = "datastore"
	ComponentOrderQueue   = "order-queue"
	ComponentCacheControl = "cache-control"
	ComponentNotification = "notification"
)

// New returns an error with the given text.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling Unwrap on err, if available.
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join wraps the given errors into a single error.
func Join(errs ...error) error { return errors.Join(errs...) }

// componentError attaches a component name to a wrapped error.
type componentError struct {
	component string
	err       error
}

func (e *componentError) Error() string {
	return fmt.Sprintf("%s: %v", e.component, e.err)
}

func (e *componentError) Unwrap() error { return e.err }

// WithComponent wraps err with a component tag. Returns nil if err is nil.
func WithComponent(component string, err error) error {
	if err == nil {
		return nil
	}
	return &componentError{component: component, err: err}
}

// Component returns the component tag of the outermost tagged error in the
// chain, or an empty string if none is present.
func Component(err error) string {
	var ce *componentError
	if errors.As(err, &ce) {
		return ce.component
	}
	return ""
}
