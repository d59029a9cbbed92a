// Package errors carries a Code alongside Go errors so services can say what
// went wrong and the HTTP layer can decide how to render it.
package errors

import (
	stderrors "errors"
)

// Error is immutable apart from WithDetails, which is meant to be chained
// straight off New or Wrap.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is and errors.As. A nil err is
// allowed and behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode also looks at typed errors nested below the outermost one.
func HasCode(err error, code Code) bool {
	for e := As(err); e != nil; e = As(e.cause) {
		if e.code == code {
			return true
		}
	}
	return false
}

// Retryable judges by the outermost code. Untyped errors count as internal.
func Retryable(err error) bool {
	return err != nil && MetadataFor(As(err).Code()).Retryable
}
