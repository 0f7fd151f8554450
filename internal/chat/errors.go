package chat

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeNotAllowed     = "not_allowed"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeStorageFailed  = "storage_failed"
	ErrCodeDeliveryFailed = "delivery_failed"
	ErrCodeNotFound       = "not_found"
)

var (
	ErrEmptyPayload = errors.New("message has neither text nor attachment")
	ErrNotAllowed   = errors.New("users are not allowed to exchange messages")
)

// Error wraps a code and human-readable message. Validation and
// authorization codes map to client errors at the transport; storage
// codes map to server errors.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func domainError(code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the domain error code, or empty for unknown errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
