package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig         Kind = "config"
	KindDomain         Kind = "domain"
	KindTransport      Kind = "transport"
	KindPlatform       Kind = "platform"
	KindBootstrap      Kind = "bootstrap"
	KindStorage        Kind = "storage"
	KindMetadata       Kind = "metadata"
	KindTranscode      Kind = "transcode"
	KindUnknownVariant Kind = "unknown_variant"
	KindNotFound       Kind = "not_found"
	KindUnknown        Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches kind and operation context to err. An err that already
// carries a *Error is returned as-is so the innermost kind wins.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// WrapAs is like Wrap but always applies kind, keeping err in the chain.
func WrapAs(kind Kind, op, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			if target.Kind == kind {
				return true
			}
			err = target.Cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the outermost kind in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}
