package send

import (
	"net/netip"
	"time"
)

// Limits on a send plan.
const (
	MaxCount    = 1000
	MinInterval = 10 * time.Millisecond
	MinTimeout  = 100 * time.Millisecond
)

// Kind is the ICMP request type a plan sends.
type Kind int

const (
	// KindEcho sends Echo Requests
	KindEcho Kind = iota
	// KindTimestamp sends RFC 792 Timestamp requests
	KindTimestamp
)

// String returns the request kind name.
func (k Kind) String() string {
	switch k {
	case KindEcho:
		return "echo"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Config holds the configuration for a send plan.
type Config struct {
	Kind     Kind          // Request type (default: echo)
	Count    int           // Number of requests (default: 1, max 1000)
	Interval time.Duration // Delay between requests (default: 1s, min 10ms)
	Timeout  time.Duration // Reply wait per request (default: 3s)
	Wait     bool          // Wait for and match replies

	// IPv4 header fields, used when the caller builds the header
	TTL    uint8      // 0 means 64
	TOS    uint8      // Type of service
	IPID   uint16     // Identification
	Source netip.Addr // Source address; unset lets the kernel choose

	// Identifier for requests; 0 uses the process ID
	Identifier uint16

	// OnResult is called after each request completes
	OnResult func(r *Result)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Kind:     KindEcho,
		Count:    1,
		Interval: time.Second,
		Timeout:  3 * time.Second,
		Wait:     true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Count < 1 || c.Count > MaxCount {
		return ErrInvalidCount
	}
	if c.Count > 1 && c.Interval < MinInterval {
		return ErrInvalidInterval
	}
	if c.Wait && c.Timeout < MinTimeout {
		return ErrInvalidTimeout
	}
	return nil
}
