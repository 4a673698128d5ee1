package packet

import (
	"fmt"
	"net/netip"
)

// IPv4 header constants.
const (
	IPv4Version     = 4
	IPv4HeaderLen   = 20 // header length without options
	IPv4MinIHL      = 5  // minimal header length in 32-bit words
	ipv4ChecksumOff = 10
	ipv4MaxFragOff  = 0x1fff
	ipv4MaxFlags    = 0x7
	ipv4DefaultTTL  = 64
)

// IP protocol numbers recognised by the codec.
const (
	ProtocolICMP = 1
	ProtocolTCP  = 6
	ProtocolUDP  = 17
)

// IPv4 flag bits, as stored in IPv4Header.Flags.
const (
	FlagMoreFragments = 0x1
	FlagDontFragment  = 0x2
)

// IPv4Header represents the fields of an IPv4 header.
//
// TotalLength and Checksum are written by the encoder; values supplied
// by the caller are ignored. On decode they hold what was on the wire.
type IPv4Header struct {
	Version     uint8 // decoded only, the encoder always writes 4
	IHL         uint8 // header length in 32-bit words, 0 means 5
	TOS         uint8
	TotalLength uint16
	ID          uint16
	Flags       uint8  // 3 bits
	FragOffset  uint16 // 13 bits, in 8-byte units
	TTL         uint8
	Protocol    uint8
	Checksum    uint16
	Src         netip.Addr
	Dst         netip.Addr
}

// HeaderLen returns the header length in bytes declared by IHL.
func (h *IPv4Header) HeaderLen() int {
	if h.IHL == 0 {
		return IPv4HeaderLen
	}
	return int(h.IHL) * 4
}

// String returns a one-line summary of the header.
func (h *IPv4Header) String() string {
	if h == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ver: %d, hdrlen: %d, tos: %#x, totallen: %d, id: %#x, flags: %#x, fragoff: %#x, ttl: %d, proto: %d, cksum: %#x, src: %v, dst: %v",
		h.Version, h.HeaderLen(), h.TOS, h.TotalLength, h.ID, h.Flags, h.FragOffset, h.TTL, h.Protocol, h.Checksum, h.Src, h.Dst)
}

// validate checks that the header can be written in the fixed 20-byte form.
func (h *IPv4Header) validate() error {
	if h.IHL != 0 && h.IHL != IPv4MinIHL {
		return fmt.Errorf("%w: header length %d words, only %d is supported", ErrInvalidInput, h.IHL, IPv4MinIHL)
	}
	if h.Flags > ipv4MaxFlags {
		return fmt.Errorf("%w: flags %#x exceed 3 bits", ErrInvalidInput, h.Flags)
	}
	if h.FragOffset > ipv4MaxFragOff {
		return fmt.Errorf("%w: fragment offset %#x exceeds 13 bits", ErrInvalidInput, h.FragOffset)
	}
	if h.Src.IsValid() && !h.Src.Unmap().Is4() {
		return fmt.Errorf("%w: source %v is not an IPv4 address", ErrInvalidInput, h.Src)
	}
	if !h.Dst.IsValid() || !h.Dst.Unmap().Is4() {
		return fmt.Errorf("%w: destination %v is not an IPv4 address", ErrInvalidInput, h.Dst)
	}
	return nil
}

// marshal writes the 20-byte header with a zero checksum.
func (h *IPv4Header) marshal(w *writer) {
	w.uint8(IPv4Version<<4 | IPv4MinIHL)
	w.uint8(h.TOS)
	w.uint16(h.TotalLength)
	w.uint16(h.ID)
	w.uint16(uint16(h.Flags)<<13 | h.FragOffset)
	w.uint8(h.TTL)
	w.uint8(h.Protocol)
	w.uint16(0)
	w.bytes(addr4(h.Src))
	w.bytes(addr4(h.Dst))
}

// addr4 returns the four address bytes, or zeros for an unset address.
func addr4(a netip.Addr) []byte {
	if !a.IsValid() {
		return make([]byte, 4)
	}
	b := a.Unmap().As4()
	return b[:]
}

// ParseIPv4Header decodes an IPv4 header from the front of b.
// It returns the header and the header length in bytes, which is the
// offset at which the next layer begins.
func ParseIPv4Header(b []byte) (*IPv4Header, int, error) {
	c := NewCursor(b)
	if !c.Has(IPv4HeaderLen) {
		return nil, 0, fmt.Errorf("%w: IPv4 header needs %d bytes, have %d", ErrTruncated, IPv4HeaderLen, len(b))
	}

	h := &IPv4Header{}
	vihl, _ := c.Uint8()
	h.Version = vihl >> 4
	h.IHL = vihl & 0x0f

	hdrlen := int(h.IHL) * 4
	if h.IHL < IPv4MinIHL {
		return h, 0, fmt.Errorf("%w: IPv4 header length %d words is below the minimum", ErrTruncated, h.IHL)
	}
	if len(b) < hdrlen {
		return h, 0, fmt.Errorf("%w: IPv4 header declares %d bytes, have %d", ErrTruncated, hdrlen, len(b))
	}

	h.TOS, _ = c.Uint8()
	h.TotalLength, _ = c.Uint16()
	h.ID, _ = c.Uint16()
	fo, _ := c.Uint16()
	h.Flags = uint8(fo >> 13)
	h.FragOffset = fo & ipv4MaxFragOff
	h.TTL, _ = c.Uint8()
	h.Protocol, _ = c.Uint8()
	h.Checksum, _ = c.Uint16()
	src, _ := c.Next(4)
	dst, _ := c.Next(4)
	h.Src = netip.AddrFrom4([4]byte(src))
	h.Dst = netip.AddrFrom4([4]byte(dst))

	return h, hdrlen, nil
}
