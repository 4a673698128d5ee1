package packet

import "errors"

// Codec errors.
var (
	// ErrInvalidInput indicates header fields the encoder cannot represent
	ErrInvalidInput = errors.New("invalid header input")

	// ErrTruncated indicates the buffer ended before a header was complete
	ErrTruncated = errors.New("truncated header")

	// ErrUnsupportedMessage indicates an ICMP type with no Message variant
	ErrUnsupportedMessage = errors.New("unsupported ICMP message type")
)

// IsTruncated returns true if the error indicates a short buffer.
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncated)
}

// IsInvalidInput returns true if the error is an encoder validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
