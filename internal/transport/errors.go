package transport

import (
	"errors"
	"net"
	"os"
)

// Transport errors.
var (
	// ErrTimeout indicates no packet arrived before the deadline
	ErrTimeout = errors.New("receive timeout")

	// ErrPermissionDenied indicates insufficient privileges for raw sockets
	ErrPermissionDenied = errors.New("permission denied: raw socket requires elevated privileges")

	// ErrClosed indicates the connection has been closed
	ErrClosed = errors.New("connection closed")

	// ErrInvalidDestination indicates a destination that is not IPv4
	ErrInvalidDestination = errors.New("destination must be an IPv4 address")

	// ErrHeaderIncluded indicates a packet framed for the other socket
	// mode, with or without its IPv4 header
	ErrHeaderIncluded = errors.New("header-included mode mismatch")
)

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsPermissionError returns true if the error is a permission error.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// classify maps socket errors to transport errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrPermission) {
		return errors.Join(ErrPermissionDenied, err)
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
