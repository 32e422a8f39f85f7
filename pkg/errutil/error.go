package errutil

import "fmt"

// Detail points at the request field an error is about.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BaseError is the error type handlers return. Message and Details are public; Err is the
// internal cause and is never rendered.
type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus { return e.Code }

func (e BaseError) Unwrap() error { return e.Err }

func (e BaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

// JSON is the response body: {"error":{"code","message","details"}}.
func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
			"details": e.Details,
		},
	}
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func New(code CoreStatus, message string, cause error, opts ...Option) error {
	be := BaseError{Code: code, Message: message, Err: cause}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func BadRequest(msg string, err error, opts ...Option) error {
	return New(StatusBadRequest, msg, err, opts...)
}

func ValidationFailed(msg string, err error, opts ...Option) error {
	return New(StatusValidationFailed, msg, err, opts...)
}

func Forbidden(msg string, err error, opts ...Option) error {
	return New(StatusForbidden, msg, err, opts...)
}

func NotFound(msg string, err error, opts ...Option) error {
	return New(StatusNotFound, msg, err, opts...)
}

func Conflict(msg string, err error, opts ...Option) error {
	return New(StatusConflict, msg, err, opts...)
}

func ServiceUnavailable(msg string, err error, opts ...Option) error {
	return New(StatusServiceUnavailable, msg, err, opts...)
}

func Internal(msg string, err error, opts ...Option) error {
	return New(StatusInternal, msg, err, opts...)
}
