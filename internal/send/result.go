package send

import (
	"net/netip"
	"time"
)

// Result describes one request and its reply.
type Result struct {
	// Seq is the ICMP sequence number
	Seq uint16 `json:"seq"`

	// ID is the ICMP identifier
	ID uint16 `json:"id"`

	// Bytes is the number of bytes handed to the transport
	Bytes int `json:"bytes"`

	// IPChecksum is the IPv4 header checksum, 0 when the kernel built it
	IPChecksum uint16 `json:"ip_checksum,omitempty"`

	// ICMPChecksum is the ICMP message checksum
	ICMPChecksum uint16 `json:"icmp_checksum"`

	// SentAt is when the request was sent
	SentAt time.Time `json:"sent_at"`

	// Replied indicates a matching reply arrived
	Replied bool `json:"replied"`

	// From is the reply source
	From netip.Addr `json:"from,omitempty"`

	// RTT is the round-trip time
	RTT time.Duration `json:"rtt,omitempty"`

	// Clock holds the responder's timestamps for timestamp requests
	Clock *Clock `json:"clock,omitempty"`

	// Error is set when the send failed or no reply arrived
	Error string `json:"error,omitempty"`
}

// Clock holds RFC 792 timestamps, milliseconds since midnight UTC.
type Clock struct {
	Originate uint32 `json:"originate"`
	Receive   uint32 `json:"receive"`
	Transmit  uint32 `json:"transmit"`

	// Back is the local time the reply arrived
	Back uint32 `json:"back"`
}

// Offset estimates the responder clock offset from the local clock,
// assuming symmetric paths.
func (c *Clock) Offset() time.Duration {
	ms := (int64(c.Receive) - int64(c.Originate) + int64(c.Transmit) - int64(c.Back)) / 2
	return time.Duration(ms) * time.Millisecond
}

// RTTMillis returns the RTT in milliseconds.
func (r *Result) RTTMillis() float64 {
	return float64(r.RTT.Microseconds()) / 1000.0
}

// Report contains the complete outcome of a send plan.
type Report struct {
	// Target is the original target (hostname or IP)
	Target string `json:"target"`

	// ResolvedIP is the destination address
	ResolvedIP netip.Addr `json:"resolved_ip"`

	// Kind is the request type
	Kind string `json:"kind"`

	// HeaderIncluded indicates the IPv4 header was built locally
	HeaderIncluded bool `json:"header_included"`

	// Timestamp is when the plan started
	Timestamp time.Time `json:"timestamp"`

	// Results holds one entry per request sent
	Results []Result `json:"results"`

	// Summary contains aggregate statistics
	Summary Summary `json:"summary"`
}

// Summary contains aggregate statistics for a send plan.
type Summary struct {
	Sent        int     `json:"sent"`
	Received    int     `json:"received"`
	LossPercent float64 `json:"loss_percent"`
	MinRTT      float64 `json:"min_rtt_ms"`
	AvgRTT      float64 `json:"avg_rtt_ms"`
	MaxRTT      float64 `json:"max_rtt_ms"`
}

// summarize calculates statistics over results. Loss is only
// meaningful when replies were awaited.
func summarize(results []Result, wait bool) Summary {
	s := Summary{Sent: len(results)}

	var total float64
	for _, r := range results {
		if !r.Replied {
			continue
		}
		rtt := r.RTTMillis()
		if s.Received == 0 || rtt < s.MinRTT {
			s.MinRTT = rtt
		}
		if rtt > s.MaxRTT {
			s.MaxRTT = rtt
		}
		total += rtt
		s.Received++
	}

	if s.Received > 0 {
		s.AvgRTT = total / float64(s.Received)
	}
	if wait && s.Sent > 0 {
		s.LossPercent = float64(s.Sent-s.Received) / float64(s.Sent) * 100
	}
	return s
}
