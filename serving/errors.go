package serving

import "net/http"

// Kind is the fixed failure classification. Every failure crossing the
// serving boundary carries exactly one kind; the transport layer maps it to
// a status code with HTTPStatus.
type Kind int

const (
	KindValidation Kind = iota
	KindModelUnavailable
	KindRouteNotFound
	KindMethodNotAllowed
	KindInternal
)

// ErrorResponse is the wire shape of every failure.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Success bool              `json:"success"`
}

type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Response builds the client-facing payload. Internal errors always get the
// generic message; the cause stays server-side.
func (e *Error) Response() ErrorResponse {
	if e.Kind == KindInternal {
		return ErrorResponse{Error: "internal server error"}
	}
	return ErrorResponse{Error: e.Message, Details: e.Details}
}

func NewValidationError(message string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func NewModelUnavailableError() *Error {
	return &Error{Kind: KindModelUnavailable, Message: "model is not loaded"}
}

func NewRouteNotFoundError(path string) *Error {
	return &Error{
		Kind:    KindRouteNotFound,
		Message: "endpoint not found",
		Details: map[string]string{"path": path},
	}
}

func NewMethodNotAllowedError(method string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Message: "method not allowed",
		Details: map[string]string{"method": method},
	}
}

// NewInternalError wraps an unexpected failure. The cause is kept for logs
// only and never reaches the response payload.
func NewInternalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", cause: cause}
}
