package cache

import (
	"errors"
	"fmt"
)

// Error represents a failure detected by the cache.
//
// Cache errors are caller errors: they are surfaced immediately and never
// retried. Unresolved relationships and validation failures are not errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityKey is the canonical key string of the affected entity, if any.
	EntityKey string

	// Property names the property being written, if any.
	Property string
}

// ErrorCode categorizes cache errors.
type ErrorCode string

const (
	// ErrCodeDuplicateIdentity indicates two entities would share a key.
	ErrCodeDuplicateIdentity ErrorCode = "DUPLICATE_IDENTITY"

	// ErrCodeIllegalStateTransition indicates a transition the state machine forbids.
	ErrCodeIllegalStateTransition ErrorCode = "ILLEGAL_STATE_TRANSITION"

	// ErrCodeMissingMetadata indicates an unresolved or unregistered type.
	ErrCodeMissingMetadata ErrorCode = "MISSING_METADATA"

	// ErrCodeUnknownProperty indicates a property the type does not declare.
	ErrCodeUnknownProperty ErrorCode = "UNKNOWN_PROPERTY"

	// ErrCodeInvalidValue indicates a value that cannot be coerced or assigned.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"

	// ErrCodeNotAttached indicates an operation that needs a session.
	ErrCodeNotAttached ErrorCode = "NOT_ATTACHED"

	// ErrCodeForeignSession indicates an entity attached to another session.
	ErrCodeForeignSession ErrorCode = "FOREIGN_SESSION"

	// ErrCodeValidationFailed indicates a save refused because of
	// validation errors.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.EntityKey != "" && e.Property != "":
		return fmt.Sprintf("%s: %s (entity=%s, property=%s)", e.Code, e.Message, e.EntityKey, e.Property)
	case e.EntityKey != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityKey)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// ErrorCodeOf returns the code of a cache error, or "" for other errors.
func ErrorCodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsDuplicateIdentity returns true if err is a duplicate identity error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateIdentity(err error) bool { return hasCode(err, ErrCodeDuplicateIdentity) }

// IsIllegalStateTransition returns true if err is an illegal state transition.
func IsIllegalStateTransition(err error) bool { return hasCode(err, ErrCodeIllegalStateTransition) }

// IsMissingMetadata returns true if err is a missing metadata error.
func IsMissingMetadata(err error) bool { return hasCode(err, ErrCodeMissingMetadata) }

// IsNotAttached returns true if err reports a detached entity.
func IsNotAttached(err error) bool { return hasCode(err, ErrCodeNotAttached) }

func newDuplicateIdentityError(key EntityKey) *Error {
	return &Error{
		Code:      ErrCodeDuplicateIdentity,
		Message:   "an entity with this key is already in the cache",
		EntityKey: key.String(),
	}
}

func newIllegalStateError(e *Entity, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeIllegalStateTransition,
		Message:   fmt.Sprintf(format, args...),
		EntityKey: e.keyString(),
	}
}

func newMissingMetadataError(typeName string) *Error {
	return &Error{
		Code:    ErrCodeMissingMetadata,
		Message: fmt.Sprintf("no resolved metadata for type %q", typeName),
	}
}

func newUnknownPropertyError(e *Entity, name string) *Error {
	return &Error{
		Code:      ErrCodeUnknownProperty,
		Message:   fmt.Sprintf("type %q has no property %q", e.typ.Name, name),
		EntityKey: e.keyString(),
		Property:  name,
	}
}

func newInvalidValueError(e *Entity, name string, err error) *Error {
	return &Error{
		Code:      ErrCodeInvalidValue,
		Message:   err.Error(),
		EntityKey: e.keyString(),
		Property:  name,
	}
}

func newNotAttachedError(e *Entity, name string) *Error {
	return &Error{
		Code:      ErrCodeNotAttached,
		Message:   "entity is not attached to a session",
		EntityKey: e.keyString(),
		Property:  name,
	}
}

func newForeignSessionError(e *Entity) *Error {
	return &Error{
		Code:      ErrCodeForeignSession,
		Message:   "entity is attached to a different session",
		EntityKey: e.keyString(),
	}
}
