// Package transport sends and receives raw IPv4 ICMP packets.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
)

const (
	networkRaw        = "ip4:icmp"
	networkDatagram   = "udp4"
	defaultTimeout    = 3 * time.Second
	maxPacketSize     = 1500
	defaultListenAddr = "0.0.0.0"
)

// Config holds configuration for a Conn.
type Config struct {
	// HeaderIncluded sends caller-built IPv4 headers (IP_HDRINCL).
	// When false the kernel builds the IPv4 header and Send takes ICMP
	// bytes only.
	HeaderIncluded bool

	// TTL for kernel-built headers; 0 leaves the system default
	TTL int

	// ListenAddr is the local address to bind; unset binds all
	ListenAddr netip.Addr

	// Timeout bounds Receive when the context has no earlier deadline
	Timeout time.Duration

	// Unprivileged falls back to an ICMP datagram socket when a raw
	// socket cannot be opened. Not available with HeaderIncluded.
	Unprivileged bool
}

// Reply is one ICMP message read from the connection.
type Reply struct {
	// Data is the ICMP message without the IPv4 header
	Data []byte

	// From is the sender address
	From netip.Addr

	// At is when the message was read
	At time.Time
}

// Message parses the ICMP message carried by the reply.
func (r *Reply) Message() (packet.Message, error) {
	return packet.ParseMessage(r.Data)
}

// Conn is a raw IPv4 ICMP connection.
type Conn struct {
	cfg     Config
	network string
	pc      *icmp.PacketConn
	raw     *ipv4.RawConn
	mu      sync.Mutex // serializes reads
	closed  atomic.Bool
}

// Open opens a connection. Raw sockets need root or CAP_NET_RAW; the
// error satisfies IsPermissionError otherwise.
func Open(cfg Config) (*Conn, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TTL < 0 || cfg.TTL > 255 {
		return nil, fmt.Errorf("invalid TTL %d: must be between 0 and 255", cfg.TTL)
	}

	addr := defaultListenAddr
	if cfg.ListenAddr.IsValid() {
		if !cfg.ListenAddr.Unmap().Is4() {
			return nil, fmt.Errorf("%w: listen address %v", ErrInvalidDestination, cfg.ListenAddr)
		}
		addr = cfg.ListenAddr.Unmap().String()
	}

	c := &Conn{cfg: cfg}
	open := c.openPacket
	if cfg.HeaderIncluded {
		open = c.openRaw
	}
	if err := open(addr); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) openRaw(addr string) error {
	pc, err := net.ListenPacket(networkRaw, addr)
	if err != nil {
		return classify(err)
	}
	raw, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return classify(err)
	}
	c.raw = raw
	c.network = networkRaw
	return nil
}

func (c *Conn) openPacket(addr string) error {
	network := networkRaw
	pc, err := icmp.ListenPacket(network, addr)
	if err != nil && c.cfg.Unprivileged {
		network = networkDatagram
		pc, err = icmp.ListenPacket(network, addr)
	}
	if err != nil {
		return classify(err)
	}

	if c.cfg.TTL > 0 {
		if err := pc.IPv4PacketConn().SetTTL(c.cfg.TTL); err != nil {
			pc.Close()
			return fmt.Errorf("failed to set TTL: %w", err)
		}
	}
	c.pc = pc
	c.network = network
	return nil
}

// HeaderIncluded reports whether Send expects a full IPv4 header.
func (c *Conn) HeaderIncluded() bool {
	return c.raw != nil
}

// Network returns the socket network in use: "ip4:icmp" or "udp4".
func (c *Conn) Network() string {
	return c.network
}

// Send writes b to dst. On a header-included connection b must start
// with an IPv4 header; otherwise b is the ICMP message alone.
func (c *Conn) Send(ctx context.Context, b []byte, dst netip.Addr) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst = dst.Unmap()
	if !dst.Is4() {
		return fmt.Errorf("%w: %v", ErrInvalidDestination, dst)
	}

	if err := checkFraming(b, c.raw != nil); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if c.raw != nil {
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return fmt.Errorf("%w: %v", packet.ErrInvalidInput, err)
		}
		if h.Len > len(b) {
			return fmt.Errorf("%w: header length %d exceeds packet", packet.ErrInvalidInput, h.Len)
		}
		h.Dst = net.IP(dst.AsSlice())
		c.raw.SetWriteDeadline(deadline)
		return classify(c.raw.WriteTo(h, b[h.Len:], nil))
	}

	c.pc.SetWriteDeadline(deadline)
	_, err := c.pc.WriteTo(b, c.addr(dst))
	return classify(err)
}

// checkFraming rejects a packet built for the other socket mode: an ICMP
// message on a header-included socket, or an IPv4 ICMP packet on one
// where the kernel writes the header.
func checkFraming(b []byte, headerIncluded bool) error {
	isIPv4 := len(b) >= packet.IPv4HeaderLen && b[0]>>4 == 4
	if headerIncluded && !isIPv4 {
		return fmt.Errorf("%w: packet does not start with an IPv4 header", ErrHeaderIncluded)
	}
	if !headerIncluded && isIPv4 && b[9] == packet.ProtocolICMP {
		return fmt.Errorf("%w: packet carries an IPv4 header the kernel would duplicate", ErrHeaderIncluded)
	}
	return nil
}

// addr returns the socket address type for the connection network.
func (c *Conn) addr(dst netip.Addr) net.Addr {
	ip := net.IP(dst.AsSlice())
	if c.network == networkDatagram {
		return &net.UDPAddr{IP: ip}
	}
	return &net.IPAddr{IP: ip}
}

// Receive reads the next ICMP message. It returns ErrTimeout when
// nothing arrives before the context deadline or the configured timeout.
func (c *Conn) Receive(ctx context.Context) (*Reply, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	buf := make([]byte, maxPacketSize)

	if c.raw != nil {
		c.raw.SetReadDeadline(deadline)
		h, p, _, err := c.raw.ReadFrom(buf)
		if err != nil {
			return nil, classify(err)
		}
		from, _ := netip.AddrFromSlice(h.Src.To4())
		return &Reply{Data: append([]byte(nil), p...), From: from, At: time.Now()}, nil
	}

	c.pc.SetReadDeadline(deadline)
	n, peer, err := c.pc.ReadFrom(buf)
	if err != nil {
		return nil, classify(err)
	}
	return &Reply{Data: buf[:n], From: extractAddr(peer), At: time.Now()}, nil
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.raw != nil {
		return c.raw.Close()
	}
	if c.pc != nil {
		return c.pc.Close()
	}
	return nil
}

func extractAddr(addr net.Addr) netip.Addr {
	var ip net.IP
	switch a := addr.(type) {
	case *net.IPAddr:
		ip = a.IP
	case *net.UDPAddr:
		ip = a.IP
	default:
		return netip.Addr{}
	}
	a, _ := netip.AddrFromSlice(ip)
	return a.Unmap()
}
