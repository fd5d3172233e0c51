package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures returned by the engines.
type ErrorCode string

const (
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeConflict   ErrorCode = "CONFLICT"
	CodeValidation ErrorCode = "VALIDATION"
	CodeCycle      ErrorCode = "CYCLE"
	CodeStaleWrite ErrorCode = "STALE_WRITE"
)

// MsgRebaseInPast is reported when a schedule change would leave descendants
// starting or finishing after their ancestor.
const MsgRebaseInPast = "Can't Rebase In Past"

// Error is a classified failure. Field names the offending attribute for
// validation and cycle errors; ConflictIDs lists the nodes blocking a change.
type Error struct {
	Code        ErrorCode
	Message     string
	Field       string
	ConflictIDs []string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NotFound(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Field: entity}
}

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func Cycle(field, message string) *Error {
	return &Error{Code: CodeCycle, Message: message, Field: field}
}

func Conflict(message string, ids []string) *Error {
	return &Error{Code: CodeConflict, Message: message, ConflictIDs: ids}
}

func StaleWrite(entity, id string) *Error {
	return &Error{Code: CodeStaleWrite, Message: fmt.Sprintf("%s %s was modified concurrently", entity, id), Field: entity}
}

// IsCode reports whether err wraps a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// FieldOf returns the field carried by a wrapped *Error, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// ConflictIDsOf returns the conflicting ids carried by a wrapped *Error.
func ConflictIDsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.ConflictIDs
	}
	return nil
}
