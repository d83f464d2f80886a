package errors

import "fmt"

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrEmptyWords   = fmt.Errorf("no words have been found")
	ErrInvalidWords = fmt.Errorf("censored words file contains an invalid entry")

	// ErrMalformedMessage frame or codec violation. The offending connection is closed.
	ErrMalformedMessage = fmt.Errorf("malformed message")
	// ErrDuplicateUsername handshake rejected, the username is already registered.
	ErrDuplicateUsername = fmt.Errorf("username already taken")
	// ErrInvalidUsername handshake rejected, the username cannot be registered.
	ErrInvalidUsername = fmt.Errorf("invalid username")
	// ErrProtocolViolation the first message of a connection was not CONNECT.
	ErrProtocolViolation = fmt.Errorf("protocol violation")
	// ErrSendFailed a single recipient could not be written to.
	ErrSendFailed = fmt.Errorf("send failed")
	// ErrTransportClosed peer closed the connection or it was reset.
	ErrTransportClosed = fmt.Errorf("transport closed")
	// ErrListenerFailure cannot bind or accept.
	ErrListenerFailure = fmt.Errorf("listener failure")
	// ErrConnect client could not join the relay.
	ErrConnect = fmt.Errorf("connect failed")
)
