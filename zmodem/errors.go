package zmodem

import "github.com/drunlade/gomodem/transfer"

// Error and ErrorType alias the shared transfer package's error type
// rather than duplicating it: every NewError(ErrXXX, ...) call already
// scattered through frame.go, sender.go and receiver.go keeps working
// unchanged, while callers that only know about Zmodem and callers
// that only know about transfer see the exact same value.
type (
	Error     = transfer.Error
	ErrorType = transfer.ErrorKind
)

const (
	ErrProtocol            = transfer.ErrProtocol
	ErrCRC                 = transfer.ErrCRC
	ErrTimeout             = transfer.ErrTimeout
	ErrIO                  = transfer.ErrIO
	ErrCancelled           = transfer.ErrCancelled
	ErrInvalidFrame        = transfer.ErrInvalidFrame
	ErrFileSkipped         = transfer.ErrFileSkipped
	ErrRemoteCommandDenied = transfer.ErrRemoteCommandDenied
)

// NewError creates a new ZModem error carrying no wrapped cause.
func NewError(errType ErrorType, message string) *Error {
	return transfer.NewError(errType, message)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == ErrTimeout
	}
	return false
}

// IsCRC checks if an error is a CRC error
func IsCRC(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == ErrCRC
	}
	return false
}

// IsCancelled checks if an error indicates cancellation
func IsCancelled(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == ErrCancelled
	}
	return false
}
