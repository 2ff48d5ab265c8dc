// Package apierrors defines the typed error kinds that cross subsystem
// boundaries in Reddwarf. Lower layers (pkg/kv, pkg/version, pkg/ipam,
// pkg/zoneruntime) raise their own narrower error types; callers that need
// to surface a failure over HTTP map those into one of the kinds here.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the surface-level error categories from spec.md §7.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindAlreadyExists        Kind = "AlreadyExists"
	KindConflict             Kind = "Conflict"
	KindBadRequest           Kind = "BadRequest"
	KindValidationFailed     Kind = "ValidationFailed"
	KindUnsupportedMediaType Kind = "UnsupportedMediaType"
	KindMethodNotAllowed     Kind = "MethodNotAllowed"
	KindInternal             Kind = "Internal"
)

// Error is a typed, Kind-tagged error. The HTTP layer classifies on Kind
// alone; callers deeper in the stack are free to wrap additional context.
type Error struct {
	Kind    Kind
	Message string
	Key     string
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NotFound(key string) error {
	return &Error{Kind: KindNotFound, Key: key, Message: "not found"}
}

func AlreadyExists(key string) error {
	return &Error{Kind: KindAlreadyExists, Key: key, Message: "already exists"}
}

func Conflict(key, msg string) error {
	return &Error{Kind: KindConflict, Key: key, Message: msg}
}

func BadRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func ValidationFailed(msg string) error {
	return &Error{Kind: KindValidationFailed, Message: msg}
}

func UnsupportedMediaType(msg string) error {
	return &Error{Kind: KindUnsupportedMediaType, Message: msg}
}

func MethodNotAllowed(msg string) error {
	return &Error{Kind: KindMethodNotAllowed, Message: msg}
}

func Internal(msg string) error {
	return &Error{Kind: KindInternal, Message: msg}
}

func Internalf(format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err, defaulting to KindInternal for anything that isn't
// a tagged *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
