package dissect

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
	"golang.org/x/net/ipv4"
)

// LinkType is a capture link-layer header type (LINKTYPE_* numbering).
type LinkType uint32

const (
	// linkTypeUnset is the zero value of Frame.LinkType; it decodes as
	// Ethernet
	linkTypeUnset LinkType = 0
	// LinkTypeEthernet is LINKTYPE_ETHERNET
	LinkTypeEthernet LinkType = 1
	// LinkTypeRaw is LINKTYPE_RAW, packets begin with the IP header
	LinkTypeRaw LinkType = 101
	// LinkTypeLinuxSLL is LINKTYPE_LINUX_SLL (cooked capture)
	LinkTypeLinuxSLL LinkType = 113
	// LinkTypeIPv4 is LINKTYPE_IPV4
	LinkTypeIPv4 LinkType = 228
)

// String returns the link type name.
func (l LinkType) String() string {
	switch l {
	case LinkTypeEthernet:
		return "ethernet"
	case LinkTypeRaw:
		return "raw"
	case LinkTypeLinuxSLL:
		return "linux-sll"
	case LinkTypeIPv4:
		return "ipv4"
	default:
		return fmt.Sprintf("linktype(%d)", uint32(l))
	}
}

// EtherType values.
const (
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
	EtherTypeVLAN = 0x8100
	EtherTypeQinQ = 0x88a8
	EtherTypeIPv6 = 0x86dd
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
	sllHeaderLen      = 16
	sllProtocolOff    = 14
)

// Frame is one captured link-layer frame. Data is borrowed: Dissect
// never modifies or retains it beyond the returned Chain's header values.
// A Frame without a LinkType is an Ethernet frame.
type Frame struct {
	Data      []byte
	Timestamp time.Time
	LinkType  LinkType
}

// NewFrame creates an Ethernet frame captured at sec seconds and usec
// microseconds since the Unix epoch.
func NewFrame(data []byte, sec, usec int64) Frame {
	return Frame{
		Data:      data,
		Timestamp: time.Unix(sec, usec*int64(time.Microsecond)),
		LinkType:  LinkTypeEthernet,
	}
}

// Options controls optional dissection work.
type Options struct {
	// VerifyChecksums recomputes IPv4 and ICMP checksums and records
	// mismatches in Chain.Problems
	VerifyChecksums bool
}

// Dissect walks the protocol layers of f.
//
// The returned Chain is never nil; on error it holds the layers that were
// decoded before the failure. Truncation is reported as a *TruncatedError.
// Dissect never reads past the end of f.Data.
func Dissect(f Frame, opts Options) (*Chain, error) {
	ch := &Chain{
		Timestamp: f.Timestamp,
		Length:    len(f.Data),
	}
	c := packet.NewCursor(f.Data)

	etherType, err := ch.decodeLink(c, f.LinkType)
	if err != nil {
		return ch, err
	}
	ch.EtherType = etherType

	switch etherType {
	case EtherTypeIPv4:
		return ch, ch.decodeIPv4(c, opts)
	case EtherTypeARP:
		ch.push(KindARP, 0)
	default:
		ch.push(KindUnknown, int(etherType))
	}
	return ch, nil
}

// decodeLink consumes the link-layer header and returns the EtherType
// of the payload.
func (ch *Chain) decodeLink(c *packet.Cursor, lt LinkType) (uint16, error) {
	switch lt {
	case LinkTypeEthernet, linkTypeUnset:
		ch.push(KindEthernet, 0)
		if !c.Has(ethernetHeaderLen) {
			return 0, truncated(KindEthernet, ethernetHeaderLen, c.Remaining())
		}
		c.Skip(12) // destination and source MAC
		etherType, _ := c.Uint16()
		return ch.decodeVLANs(c, etherType)

	case LinkTypeLinuxSLL:
		ch.push(KindLinuxSLL, 0)
		if !c.Has(sllHeaderLen) {
			return 0, truncated(KindLinuxSLL, sllHeaderLen, c.Remaining())
		}
		c.Skip(sllProtocolOff)
		etherType, _ := c.Uint16()
		return ch.decodeVLANs(c, etherType)

	case LinkTypeIPv4:
		ch.push(KindRawIP, 0)
		return EtherTypeIPv4, nil

	case LinkTypeRaw:
		ch.push(KindRawIP, 0)
		b, ok := c.Peek(1)
		if !ok {
			return 0, truncated(KindRawIP, 1, 0)
		}
		switch b[0] >> 4 {
		case 4:
			return EtherTypeIPv4, nil
		case 6:
			return EtherTypeIPv6, nil
		}
		return 0, nil
	}

	ch.push(KindUnsupportedLink, int(lt))
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedLinkType, lt)
}

// decodeVLANs unwraps 802.1Q and QinQ tags.
func (ch *Chain) decodeVLANs(c *packet.Cursor, etherType uint16) (uint16, error) {
	for etherType == EtherTypeVLAN || etherType == EtherTypeQinQ {
		if !c.Has(vlanHeaderLen) {
			return 0, truncated(KindVLAN, vlanHeaderLen, c.Remaining())
		}
		tci, _ := c.Uint16()
		ch.VLANs = append(ch.VLANs, tci&0x0fff)
		etherType, _ = c.Uint16()
	}
	return etherType, nil
}

// decodeIPv4 consumes the IPv4 header and dispatches on the protocol.
func (ch *Chain) decodeIPv4(c *packet.Cursor, opts Options) error {
	ch.push(KindIPv4, 0)

	b := c.Bytes()
	if len(b) < packet.IPv4HeaderLen {
		return truncated(KindIPv4, packet.IPv4HeaderLen, len(b))
	}
	hdrlen := int(b[0]&0x0f) * 4
	if hdrlen < packet.IPv4HeaderLen {
		return truncated(KindIPv4, packet.IPv4HeaderLen, hdrlen)
	}
	if len(b) < hdrlen {
		return truncated(KindIPv4, hdrlen, len(b))
	}

	ip, _, err := packet.ParseIPv4Header(b)
	if err != nil {
		return truncated(KindIPv4, hdrlen, len(b))
	}
	ch.IP = ip
	if ip.Version != packet.IPv4Version {
		ch.problemf("IPv4 header carries version %d", ip.Version)
	}
	if opts.VerifyChecksums && !packet.Verify(b[:hdrlen]) {
		ch.problemf("bad IPv4 checksum 0x%04x, want 0x%04x", ip.Checksum, recompute(b[:hdrlen], 10))
	}
	c.Skip(hdrlen)

	switch ip.Protocol {
	case packet.ProtocolICMP:
		return ch.decodeICMP(c, int(ip.TotalLength)-hdrlen, opts)
	case packet.ProtocolTCP:
		ch.push(KindTCP, 0)
	case packet.ProtocolUDP:
		ch.push(KindUDP, 0)
	default:
		ch.push(KindOtherIP, int(ip.Protocol))
	}
	return nil
}

// decodeICMP classifies the ICMP message. declared is the payload length
// implied by the IPv4 total length.
func (ch *Chain) decodeICMP(c *packet.Cursor, declared int, opts Options) error {
	ch.push(KindICMP, 0)

	b := c.Bytes()
	if len(b) < packet.ICMPHeaderLen {
		return truncated(KindICMP, packet.ICMPHeaderLen, len(b))
	}

	// Trim link-layer padding when the IP total length is sensible
	n := len(b)
	if declared >= packet.ICMPHeaderLen && declared < n {
		n = declared
	}
	b = b[:n]

	r := packet.NewCursor(b)
	info := &ICMPInfo{Length: n}
	info.Type, _ = r.Uint8()
	info.Code, _ = r.Uint8()
	info.Checksum, _ = r.Uint16()

	var kind Kind
	switch ipv4.ICMPType(info.Type) {
	case ipv4.ICMPTypeEcho:
		kind = KindEchoRequest
	case ipv4.ICMPTypeEchoReply:
		kind = KindEchoReply
	case ipv4.ICMPTypeTimestamp:
		kind = KindTimestampRequest
	default:
		kind = KindOtherICMP
	}

	if kind != KindOtherICMP {
		info.ID, _ = r.Uint16()
		info.Seq, _ = r.Uint16()
		if msg, err := packet.ParseMessage(b); err == nil {
			info.Message = msg
		}
		ch.push(kind, 0)
	} else {
		ch.push(kind, int(info.Type))
	}
	ch.ICMP = info

	if opts.VerifyChecksums && !packet.Verify(b) {
		ch.problemf("bad ICMP checksum 0x%04x, want 0x%04x", info.Checksum, recompute(b, 2))
	}
	return nil
}

// recompute returns the checksum b should carry at offset off.
func recompute(b []byte, off int) uint16 {
	tmp := make([]byte, len(b))
	copy(tmp, b)
	binary.BigEndian.PutUint16(tmp[off:], 0)
	return packet.Checksum(tmp)
}
