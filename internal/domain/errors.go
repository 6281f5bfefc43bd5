package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrRateLimit    = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid  = fmt.Errorf("authentication failed")
)

// Sentinel errors for the client.
var (
	ErrSessionNotFound    = fmt.Errorf("session %w", ErrNotFound)
	ErrEmptyMessage       = fmt.Errorf("message is empty: %w", ErrInvalidInput)
	ErrSendInFlight       = fmt.Errorf("a reply is still streaming for this session")
	ErrNotLoggedIn        = fmt.Errorf("not logged in")
	ErrServiceUnavailable = fmt.Errorf("assistant service unavailable")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
)

// Streaming failure kinds. A *StreamingError matches exactly one of these
// with errors.Is.
var (
	ErrTransport = fmt.Errorf("transport error")
	ErrProtocol  = fmt.Errorf("protocol error")
	ErrRemote    = fmt.Errorf("remote error")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Sessions.Rename")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// StreamingError is the single failure outcome of a send. Kind is one of
// ErrTransport, ErrProtocol or ErrRemote; Message is human-readable.
type StreamingError struct {
	Kind    error
	Op      string
	Message string
	Err     error // optional underlying cause
}

func (e *StreamingError) Error() string {
	return fmt.Sprintf("%s: streaming %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *StreamingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewTransportError reports a network or channel failure.
func NewTransportError(op string, err error) *StreamingError {
	msg := "connection failed"
	if err != nil {
		msg = err.Error()
	}
	return &StreamingError{Kind: ErrTransport, Op: op, Message: msg, Err: err}
}

// NewProtocolError reports a malformed or unexpected payload.
func NewProtocolError(op, msg string, err error) *StreamingError {
	return &StreamingError{Kind: ErrProtocol, Op: op, Message: msg, Err: err}
}

// NewRemoteError reports an explicit error record sent by the service.
func NewRemoteError(op, msg string) *StreamingError {
	if msg == "" {
		msg = "unspecified error"
	}
	return &StreamingError{Kind: ErrRemote, Op: op, Message: msg}
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
// Retrying is always the caller's decision.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTransport)
}

// ErrorCode is a machine-parseable error category for logs and exit codes.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	CodeDuplicate          ErrorCode = "DUPLICATE"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeEmptyMessage       ErrorCode = "EMPTY_MESSAGE"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeNotLoggedIn        ErrorCode = "NOT_LOGGED_IN"
	CodeSendInFlight       ErrorCode = "SEND_IN_FLIGHT"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeTransport          ErrorCode = "TRANSPORT"
	CodeProtocol           ErrorCode = "PROTOCOL"
	CodeRemote             ErrorCode = "REMOTE"
)

// errorCodes is ordered from most to least specific so that wrapped
// sentinels (ErrSessionNotFound wraps ErrNotFound) resolve to the narrow code.
var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrEmptyMessage, CodeEmptyMessage},
	{ErrSendInFlight, CodeSendInFlight},
	{ErrNotLoggedIn, CodeNotLoggedIn},
	{ErrServiceUnavailable, CodeServiceUnavailable},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrTransport, CodeTransport},
	{ErrProtocol, CodeProtocol},
	{ErrRemote, CodeRemote},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrDuplicate, CodeDuplicate},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
