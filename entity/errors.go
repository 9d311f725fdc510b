package entity

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, wire-visible failure code. Callers branch only
// on Success and, for retry decisions, on the code.
type ErrorCode string

const (
	CodeSameUserConversation ErrorCode = "chat/same-user-conversation"
	CodeConversationNotFound ErrorCode = "chat/conversation-not-found"
	CodeInvalidParams        ErrorCode = "chat/invalid-params"
	CodeOffline              ErrorCode = "chat/offline"
	CodeTimeout              ErrorCode = "chat/timeout"
	CodePermissionDenied     ErrorCode = "chat/permission-denied"
	CodeInternal             ErrorCode = "chat/internal"
)

// ChatError carries a stable code alongside the human-readable message.
type ChatError struct {
	Code    ErrorCode
	Message string
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes two ChatErrors with the same code match under errors.Is, so
// sentinel comparisons survive wrapping with context.
func (e *ChatError) Is(target error) bool {
	var ce *ChatError
	if errors.As(target, &ce) {
		return ce.Code == e.Code
	}
	return false
}

var (
	ErrSameUserConversation = &ChatError{CodeSameUserConversation, "a user cannot start a conversation with themselves"}
	ErrConversationNotFound = &ChatError{CodeConversationNotFound, "conversation not found"}
	ErrInvalidParams        = &ChatError{CodeInvalidParams, "invalid parameters"}
	ErrOffline              = &ChatError{CodeOffline, "store unreachable, operation rejected"}
	ErrTimeout              = &ChatError{CodeTimeout, "operation timed out"}
	ErrPermissionDenied     = &ChatError{CodePermissionDenied, "not a participant of this conversation"}
)

// InvalidParams builds an invalid-params error with detail.
func InvalidParams(format string, args ...any) error {
	return &ChatError{CodeInvalidParams, fmt.Sprintf(format, args...)}
}

// CodeOf extracts the stable code from err, defaulting to chat/internal
// for anything that is not a ChatError.
func CodeOf(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// Retryable reports whether a failed create/send is worth retrying.
// Validation failures, same-user rejections, not-found and the local
// offline gate cannot succeed on a second attempt.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeSameUserConversation, CodeInvalidParams, CodeConversationNotFound,
		CodePermissionDenied, CodeOffline:
		return false
	}
	return true
}
