package packet

import (
	"fmt"

	"golang.org/x/net/ipv4"
)

// ICMP message sizes.
const (
	ICMPHeaderLen     = 8  // type, code, checksum, identifier, sequence
	ICMPEchoLen       = 8  // echo request and reply carry no payload here
	ICMPTimestampLen  = 20 // RFC 792 timestamp and timestamp reply
	icmpChecksumOff   = 2
	icmpIdentifierOff = 4
)

// Message is an ICMP message the codec can encode and parse.
// The set of implementations is closed: EchoRequest, EchoReply,
// Timestamp and TimestampReply.
type Message interface {
	// Type returns the ICMP type written to byte 0.
	Type() ipv4.ICMPType

	// Len returns the encoded length in bytes.
	Len() int

	// Identifier returns the identifier and sequence fields.
	Identifier() (id, seq uint16)

	marshal(w *writer)
}

// EchoRequest is an ICMP Echo Request (type 8).
type EchoRequest struct {
	ID  uint16
	Seq uint16
}

// EchoReply is an ICMP Echo Reply (type 0).
type EchoReply struct {
	ID  uint16
	Seq uint16
}

// Timestamp is an ICMP Timestamp request (type 13), RFC 792.
// Times are milliseconds since midnight UTC.
type Timestamp struct {
	ID        uint16
	Seq       uint16
	Originate uint32
	Receive   uint32
	Transmit  uint32
}

// TimestampReply is an ICMP Timestamp Reply (type 14).
type TimestampReply struct {
	ID        uint16
	Seq       uint16
	Originate uint32
	Receive   uint32
	Transmit  uint32
}

func (m *EchoRequest) Type() ipv4.ICMPType          { return ipv4.ICMPTypeEcho }
func (m *EchoRequest) Len() int                     { return ICMPEchoLen }
func (m *EchoRequest) Identifier() (uint16, uint16) { return m.ID, m.Seq }
func (m *EchoRequest) marshal(w *writer)            { marshalEcho(w, m.Type(), m.ID, m.Seq) }

func (m *EchoReply) Type() ipv4.ICMPType          { return ipv4.ICMPTypeEchoReply }
func (m *EchoReply) Len() int                     { return ICMPEchoLen }
func (m *EchoReply) Identifier() (uint16, uint16) { return m.ID, m.Seq }
func (m *EchoReply) marshal(w *writer)            { marshalEcho(w, m.Type(), m.ID, m.Seq) }

func (m *Timestamp) Type() ipv4.ICMPType          { return ipv4.ICMPTypeTimestamp }
func (m *Timestamp) Len() int                     { return ICMPTimestampLen }
func (m *Timestamp) Identifier() (uint16, uint16) { return m.ID, m.Seq }
func (m *Timestamp) marshal(w *writer) {
	marshalEcho(w, m.Type(), m.ID, m.Seq)
	w.uint32(m.Originate)
	w.uint32(m.Receive)
	w.uint32(m.Transmit)
}

func (m *TimestampReply) Type() ipv4.ICMPType          { return ipv4.ICMPTypeTimestampReply }
func (m *TimestampReply) Len() int                     { return ICMPTimestampLen }
func (m *TimestampReply) Identifier() (uint16, uint16) { return m.ID, m.Seq }
func (m *TimestampReply) marshal(w *writer) {
	marshalEcho(w, m.Type(), m.ID, m.Seq)
	w.uint32(m.Originate)
	w.uint32(m.Receive)
	w.uint32(m.Transmit)
}

// marshalEcho writes the common 8-byte header with a zero checksum.
func marshalEcho(w *writer, typ ipv4.ICMPType, id, seq uint16) {
	w.uint8(uint8(typ))
	w.uint8(0)
	w.uint16(0)
	w.uint16(id)
	w.uint16(seq)
}

// ParseMessage decodes an ICMP message from the front of b.
// Types without a Message variant return ErrUnsupportedMessage.
func ParseMessage(b []byte) (Message, error) {
	c := NewCursor(b)
	if !c.Has(ICMPHeaderLen) {
		return nil, fmt.Errorf("%w: ICMP header needs %d bytes, have %d", ErrTruncated, ICMPHeaderLen, len(b))
	}

	typ, _ := c.Uint8()
	c.Skip(3) // code, checksum
	id, _ := c.Uint16()
	seq, _ := c.Uint16()

	switch ipv4.ICMPType(typ) {
	case ipv4.ICMPTypeEcho:
		return &EchoRequest{ID: id, Seq: seq}, nil
	case ipv4.ICMPTypeEchoReply:
		return &EchoReply{ID: id, Seq: seq}, nil
	case ipv4.ICMPTypeTimestamp, ipv4.ICMPTypeTimestampReply:
		if !c.Has(ICMPTimestampLen - ICMPHeaderLen) {
			return nil, fmt.Errorf("%w: ICMP timestamp needs %d bytes, have %d", ErrTruncated, ICMPTimestampLen, len(b))
		}
		orig, _ := c.Uint32()
		recv, _ := c.Uint32()
		xmit, _ := c.Uint32()
		if ipv4.ICMPType(typ) == ipv4.ICMPTypeTimestamp {
			return &Timestamp{ID: id, Seq: seq, Originate: orig, Receive: recv, Transmit: xmit}, nil
		}
		return &TimestampReply{ID: id, Seq: seq, Originate: orig, Receive: recv, Transmit: xmit}, nil
	}
	return nil, fmt.Errorf("%w: type %d", ErrUnsupportedMessage, typ)
}
