// Package errors wraps pkg/errors and adds error codes for the variant store
// error taxonomy.
package errors

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded              Code = "Uncoded"
	ErrMalformedParameter   Code = "MalformedParameter"
	ErrUnknownParameter     Code = "UnknownParameter"
	ErrUnresolvedReference  Code = "UnresolvedReference"
	ErrBackendUnavailable   Code = "BackendUnavailable"
	ErrTimeout              Code = "Timeout"
	ErrUniquenessViolation  Code = "UniquenessViolation"
	ErrUnsupportedOperation Code = "UnsupportedOperation"
	ErrBatchAborted         Code = "BatchAborted"
)

func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

func Newf(code Code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is takes as its target an error Code instead of an error.
func Is(err error, target Code) bool {
	match := codedError{
		Code: target,
	}
	return errors.Is(err, match)
}

// CodeOf returns the code carried by err, or the empty code when err was never
// coded.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Wrapped string `json:"wrapped,omitempty"`
}

func (ce codedError) Error() string {
	if ce.Wrapped != "" {
		return ce.Wrapped
	}
	return ce.Message
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}

// MarshalJSON returns the provided error as a json object (as a string)
// representing a codedError. If err is not already a codedError, the json
// object will still represent a codedError but its `code` value will be empty.
func MarshalJSON(err error) string {
	cause := Cause(err)

	var out *codedError

	switch v := cause.(type) {
	case codedError:
		v.Wrapped = err.Error()
		out = &v
	default:
		out = &codedError{
			Message: cause.Error(),
			Wrapped: err.Error(),
		}
	}

	j, jerr := json.Marshal(out)
	if jerr != nil {
		return out.Error()
	}
	return string(j)
}
