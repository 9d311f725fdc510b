// Package response defines the uniform result envelope used by every API
// handler: {success, data?, error?{code, message}}.
package response

import (
	"BizLink/entity"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Ok wraps data in a successful envelope.
func Ok(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// Error builds a failed envelope with the generic internal code.
func Error(message string) Response {
	return Response{
		Success: false,
		Error: &ErrorBody{
			Code:    string(entity.CodeInternal),
			Message: message,
		},
	}
}

// Status maps a domain error code to its HTTP status.
func Status(err error) int {
	switch entity.CodeOf(err) {
	case entity.CodeSameUserConversation, entity.CodeInvalidParams:
		return 400
	case entity.CodePermissionDenied:
		return 403
	case entity.CodeConversationNotFound:
		return 404
	case entity.CodeOffline:
		return 503
	case entity.CodeTimeout:
		return 504
	}
	return 500
}

// Fail builds a failed envelope from a domain error, preserving its
// stable code so callers can branch on it.
func Fail(err error) Response {
	return Response{
		Success: false,
		Error: &ErrorBody{
			Code:    string(entity.CodeOf(err)),
			Message: err.Error(),
		},
	}
}
