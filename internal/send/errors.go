package send

import "errors"

// Send errors.
var (
	// ErrInvalidCount indicates the request count is out of range
	ErrInvalidCount = errors.New("count must be between 1 and 1000")

	// ErrInvalidInterval indicates the interval between requests is too short
	ErrInvalidInterval = errors.New("interval must be at least 10ms")

	// ErrInvalidTimeout indicates the reply timeout is too short
	ErrInvalidTimeout = errors.New("timeout must be at least 100ms")

	// ErrTargetResolution indicates the target could not be resolved
	ErrTargetResolution = errors.New("could not resolve target hostname")
)
