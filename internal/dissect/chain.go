// Package dissect classifies captured frames by protocol layer.
package dissect

import (
	"fmt"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
)

// Kind identifies one layer classification in a Chain.
type Kind int

const (
	// KindEthernet is an Ethernet II frame header
	KindEthernet Kind = iota
	// KindLinuxSLL is a Linux cooked capture header
	KindLinuxSLL
	// KindRawIP marks a capture without a link-layer header
	KindRawIP
	// KindUnsupportedLink is a capture link type with no decoder; Value holds it
	KindUnsupportedLink
	// KindIPv4 is an IPv4 header
	KindIPv4
	// KindARP is an ARP packet
	KindARP
	// KindUnknown is an unclassified EtherType; Value holds it
	KindUnknown
	// KindICMP is an ICMP message
	KindICMP
	// KindTCP is a TCP segment (not interpreted further)
	KindTCP
	// KindUDP is a UDP datagram (not interpreted further)
	KindUDP
	// KindOtherIP is any other IP protocol; Value holds its number
	KindOtherIP
	// KindEchoRequest is an ICMP Echo Request (type 8)
	KindEchoRequest
	// KindEchoReply is an ICMP Echo Reply (type 0)
	KindEchoReply
	// KindTimestampRequest is an ICMP Timestamp request (type 13)
	KindTimestampRequest
	// KindOtherICMP is any other ICMP type; Value holds it
	KindOtherICMP
	// KindVLAN is an 802.1Q or QinQ tag; it only names truncation
	// errors and never appears in Layers
	KindVLAN
)

// String returns the layer name.
func (k Kind) String() string {
	switch k {
	case KindEthernet:
		return "Ethernet"
	case KindLinuxSLL:
		return "Linux SLL"
	case KindRawIP:
		return "Raw IP"
	case KindUnsupportedLink:
		return "Unsupported link"
	case KindIPv4:
		return "IPv4"
	case KindARP:
		return "ARP"
	case KindUnknown:
		return "Unknown L2"
	case KindICMP:
		return "ICMP"
	case KindTCP:
		return "TCP"
	case KindUDP:
		return "UDP"
	case KindOtherIP:
		return "Other IP"
	case KindEchoRequest:
		return "Echo Request"
	case KindEchoReply:
		return "Echo Reply"
	case KindTimestampRequest:
		return "Timestamp Request"
	case KindOtherICMP:
		return "Other ICMP"
	case KindVLAN:
		return "VLAN"
	default:
		return "unknown"
	}
}

// Layer is one classification step. Value carries the type code for the
// kinds that need one (EtherType, link type, IP protocol, ICMP type).
type Layer struct {
	Kind  Kind `json:"kind"`
	Value int  `json:"value,omitempty"`
}

// String returns the layer name with its type code when it has one.
func (l Layer) String() string {
	switch l.Kind {
	case KindUnknown:
		return fmt.Sprintf("Unknown L2 (0x%04x)", l.Value)
	case KindUnsupportedLink:
		return fmt.Sprintf("Link type %d", l.Value)
	case KindOtherIP:
		return fmt.Sprintf("IP Protocol %d", l.Value)
	case KindOtherICMP:
		return fmt.Sprintf("ICMP Type %d", l.Value)
	default:
		return l.Kind.String()
	}
}

// ICMPInfo holds the decoded ICMP header fields.
type ICMPInfo struct {
	Type     uint8
	Code     uint8
	Checksum uint16

	// ID and Seq are set for echo and timestamp messages
	ID  uint16
	Seq uint16

	// Message is the decoded message, nil for types without a variant
	// and for timestamps cut short by the capture
	Message packet.Message

	// Length is the number of ICMP bytes covered by the IP total length
	Length int
}

// Chain is the result of dissecting one frame.
type Chain struct {
	// Layers lists classifications from the link layer inward
	Layers []Layer

	// Timestamp is the capture time of the frame
	Timestamp time.Time

	// Relative is the time since the first frame of the session
	Relative time.Duration

	// Length is the captured frame length in bytes
	Length int

	// EtherType is the link-layer protocol after VLAN tags, 0 for raw IP
	EtherType uint16

	// VLANs lists 802.1Q VLAN IDs from outer to inner
	VLANs []uint16

	// IP is the IPv4 header, nil when the frame is not IPv4
	IP *packet.IPv4Header

	// ICMP is set when IPv4 carries ICMP and the header was complete
	ICMP *ICMPInfo

	// Problems lists non-fatal anomalies such as checksum mismatches
	Problems []string
}

func (c *Chain) push(k Kind, v int) {
	c.Layers = append(c.Layers, Layer{Kind: k, Value: v})
}

func (c *Chain) problemf(format string, args ...interface{}) {
	c.Problems = append(c.Problems, fmt.Sprintf(format, args...))
}

// Has reports whether the chain contains a layer of kind k.
func (c *Chain) Has(k Kind) bool {
	for _, l := range c.Layers {
		if l.Kind == k {
			return true
		}
	}
	return false
}

// Final returns the innermost classification.
func (c *Chain) Final() Layer {
	if len(c.Layers) == 0 {
		return Layer{Kind: KindUnknown}
	}
	return c.Layers[len(c.Layers)-1]
}

// Path returns the layer chain joined with arrows,
// e.g. "Ethernet → IPv4 → ICMP → Echo Request".
func (c *Chain) Path() string {
	parts := make([]string, len(c.Layers))
	for i, l := range c.Layers {
		parts[i] = l.String()
	}
	return strings.Join(parts, " → ")
}
