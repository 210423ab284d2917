// Package errors provides the classified error taxonomy shared by the listen channel,
// its wire codec and the collaborators built on top of it.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors; reopening a channel may succeed
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or an unexpected server reply
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors; the channel must be discarded
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Listen taxonomy. Every error produced by the wire codec or the channel matches
// exactly one of these with errors.Is.
var (
	// ErrFraming reports a malformed length prefix or a truncated frame
	ErrFraming = errors.New("framing error")
	// ErrProtocol reports an acknowledgement without a valid seq or an unexpected message shape
	ErrProtocol = errors.New("protocol error")
	// ErrTransport reports a network failure on the streaming GET or a command POST
	ErrTransport = errors.New("transport error")
	// ErrSession reports a handshake that did not yield session identifiers
	ErrSession = errors.New("session error")
	// ErrChannelClosed reports an operation on a channel that was closed
	ErrChannelClosed = errors.New("channel closed")
)

// Standard error variables for common conditions
var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")

	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	ErrInvalidData    = errors.New("invalid data format")
	ErrParsingFailed  = errors.New("parsing failed")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrPoolExhausted  = errors.New("channel pool exhausted")
	ErrCircuitOpen    = errors.New("circuit breaker open")
	ErrNoConnection   = errors.New("no connection available")
	ErrNotImplemented = errors.New("not implemented")
)

// ClassifiedError wraps an error with its classification and, for listen errors,
// the taxonomy kind it belongs to.
type ClassifiedError struct {
	Class     ErrorClass
	Kind      error
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	if ce.Err == nil {
		if ce.Kind != nil {
			return ce.Kind.Error()
		}
		return ce.Class.String()
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is reports whether target is the taxonomy kind of this error
func (ce *ClassifiedError) Is(target error) bool {
	return ce.Kind != nil && target == ce.Kind
}

// IsTransient checks if an error is transient
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrChannelClosed)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) || errors.Is(err, ErrParsingFailed)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

// KindOf returns the listen taxonomy kind of err, or nil if it has none
func KindOf(err error) error {
	for _, kind := range []error{ErrFraming, ErrProtocol, ErrTransport, ErrSession, ErrChannelClosed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func newClassified(class ErrorClass, kind, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Kind:      kind,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, nil, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, nil, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, nil, err, component, method, action)
}

// Framing wraps err as a fatal ErrFraming
func Framing(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, ErrFraming, orKind(err, ErrFraming), component, method, action)
}

// Protocol wraps err as an invalid ErrProtocol
func Protocol(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, ErrProtocol, orKind(err, ErrProtocol), component, method, action)
}

// Transport wraps err as a transient ErrTransport
func Transport(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, ErrTransport, orKind(err, ErrTransport), component, method, action)
}

// Session wraps err as a transient ErrSession
func Session(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, ErrSession, orKind(err, ErrSession), component, method, action)
}

// Closed returns a fatal ErrChannelClosed for the given operation
func Closed(component, method string) error {
	return wrapClassified(ErrorFatal, ErrChannelClosed, ErrChannelClosed, component, method, "check channel state")
}

func orKind(err, kind error) error {
	if err == nil {
		return kind
	}
	return err
}

func wrapClassified(class ErrorClass, kind, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(class, kind, wrappedErr, component, method, wrappedErr.Error())
}
