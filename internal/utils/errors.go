// Package utils provides shared helpers for the HDF5 read path.
package utils

import "fmt"

// H5Error is a contextual error in the HDF5 read path.
type H5Error struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError attaches context to cause, or returns nil when cause is nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{Context: context, Cause: cause}
}
