// Package packet builds and parses IPv4 and ICMP headers.
package packet

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// Encoded is a wire-ready packet produced by an Encoder.
type Encoded struct {
	// Bytes is the IPv4 header followed by the ICMP message when
	// HeaderIncluded is set, otherwise the ICMP message alone
	Bytes []byte

	// IPChecksum is the IPv4 header checksum (0 when HeaderIncluded is false)
	IPChecksum uint16

	// ICMPChecksum is the ICMP message checksum
	ICMPChecksum uint16

	// HeaderIncluded indicates Bytes starts with an IPv4 header
	HeaderIncluded bool
}

// ICMP returns the ICMP message bytes within the packet.
func (e *Encoded) ICMP() []byte {
	if e.HeaderIncluded {
		return e.Bytes[IPv4HeaderLen:]
	}
	return e.Bytes
}

// Encoder serializes IPv4 and ICMP headers.
type Encoder struct {
	// Identifier is written in place of a zero message ID so replies
	// can be matched to the process that sent the request. The
	// message itself is left unchanged.
	Identifier uint16
}

// NewEncoder creates an Encoder that identifies messages with the
// low 16 bits of the process ID.
func NewEncoder() *Encoder {
	return &Encoder{Identifier: DefaultIdentifier()}
}

// DefaultIdentifier returns the process-derived ICMP identifier.
func DefaultIdentifier() uint16 {
	return uint16(os.Getpid() & 0xffff)
}

// EncodeIPICMP serializes ip followed by msg, filling in the total length,
// the ICMP checksum and the IPv4 header checksum.
// Only the 20-byte IPv4 header without options is supported.
func (e *Encoder) EncodeIPICMP(ip IPv4Header, msg Message) (*Encoded, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: missing ICMP message", ErrInvalidInput)
	}
	if err := ip.validate(); err != nil {
		return nil, err
	}
	ip.TotalLength = uint16(IPv4HeaderLen + msg.Len())
	ip.Protocol = ProtocolICMP
	if ip.TTL == 0 {
		ip.TTL = ipv4DefaultTTL
	}

	buf := make([]byte, int(ip.TotalLength))
	w := &writer{buf: buf}
	ip.marshal(w)
	msg.marshal(w)
	e.stamp(buf[IPv4HeaderLen:], msg)

	icmpSum := Checksum(buf[IPv4HeaderLen:])
	binary.BigEndian.PutUint16(buf[IPv4HeaderLen+icmpChecksumOff:], icmpSum)

	ipSum := Checksum(buf[:IPv4HeaderLen])
	binary.BigEndian.PutUint16(buf[ipv4ChecksumOff:], ipSum)

	return &Encoded{
		Bytes:          buf,
		IPChecksum:     ipSum,
		ICMPChecksum:   icmpSum,
		HeaderIncluded: true,
	}, nil
}

// EncodeICMP serializes msg alone and fills in its checksum. Use it when
// the kernel builds the IPv4 header.
func (e *Encoder) EncodeICMP(msg Message) (*Encoded, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: missing ICMP message", ErrInvalidInput)
	}
	buf := make([]byte, msg.Len())
	msg.marshal(&writer{buf: buf})
	e.stamp(buf, msg)

	icmpSum := Checksum(buf)
	binary.BigEndian.PutUint16(buf[icmpChecksumOff:], icmpSum)

	return &Encoded{
		Bytes:        buf,
		ICMPChecksum: icmpSum,
	}, nil
}

// stamp writes the encoder identifier into icmp when msg has none.
func (e *Encoder) stamp(icmp []byte, msg Message) {
	if id, _ := msg.Identifier(); id == 0 {
		binary.BigEndian.PutUint16(icmp[icmpIdentifierOff:], e.Identifier)
	}
}

// MillisSinceMidnight returns t as milliseconds since midnight UTC,
// the RFC 792 timestamp representation.
func MillisSinceMidnight(t time.Time) uint32 {
	t = t.UTC()
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return uint32(secs)*1000 + uint32(t.Nanosecond()/int(time.Millisecond))
}

// NewTimestamp creates a Timestamp request originated at t.
// Receive and transmit times are left for the responder to fill.
func NewTimestamp(t time.Time, seq uint16) *Timestamp {
	return &Timestamp{
		Seq:       seq,
		Originate: MillisSinceMidnight(t),
	}
}

// NewEchoRequest creates an Echo Request with the given sequence number.
func NewEchoRequest(id, seq uint16) *EchoRequest {
	return &EchoRequest{ID: id, Seq: seq}
}
