// Package send runs bounded plans of ICMP echo and timestamp requests.
package send

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
	"github.com/KilimcininKorOglu/rawhdr/internal/transport"
)

// Conn is the transport a Sender writes to. *transport.Conn implements it.
type Conn interface {
	Send(ctx context.Context, b []byte, dst netip.Addr) error
	Receive(ctx context.Context) (*transport.Reply, error)
	HeaderIncluded() bool
	Network() string
}

// Sender sends the requests of one plan over a connection.
type Sender struct {
	config  *Config
	conn    Conn
	encoder *packet.Encoder
	now     func() time.Time
}

// New creates a Sender with the given configuration.
func New(config *Config, conn Conn) (*Sender, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	enc := packet.NewEncoder()
	if config.Identifier != 0 {
		enc.Identifier = config.Identifier
	}

	return &Sender{
		config:  config,
		conn:    conn,
		encoder: enc,
		now:     time.Now,
	}, nil
}

// Identifier returns the ICMP identifier the sender writes.
func (s *Sender) Identifier() uint16 {
	return s.encoder.Identifier
}

// Run resolves target and sends the planned requests. It stops early
// when ctx is done and returns the results gathered so far.
func (s *Sender) Run(ctx context.Context, target string) (*Report, error) {
	dst, err := ResolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target:         target,
		ResolvedIP:     dst,
		Kind:           s.config.Kind.String(),
		HeaderIncluded: s.conn.HeaderIncluded(),
		Timestamp:      s.now(),
		Results:        make([]Result, 0, s.config.Count),
	}

	var runErr error
	for i := 0; i < s.config.Count; i++ {
		if i > 0 {
			if err := sleep(ctx, s.config.Interval); err != nil {
				runErr = err
				break
			}
		}

		r, err := s.sendOne(ctx, dst, uint16(i+1))
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			if transport.IsPermissionError(err) {
				return nil, err
			}
			r.Error = err.Error()
		}

		report.Results = append(report.Results, *r)
		if s.config.OnResult != nil {
			s.config.OnResult(r)
		}
	}

	report.Summary = summarize(report.Results, s.config.Wait)
	return report, runErr
}

// sendOne encodes, sends and optionally awaits the reply for one request.
// The returned Result is never nil.
func (s *Sender) sendOne(ctx context.Context, dst netip.Addr, seq uint16) (*Result, error) {
	msg := s.message(seq)

	pkt, err := s.encode(dst, msg)
	if err != nil {
		return &Result{Seq: seq}, err
	}

	id, _ := msg.Identifier()
	r := &Result{
		Seq:          seq,
		ID:           id,
		Bytes:        len(pkt.Bytes),
		IPChecksum:   pkt.IPChecksum,
		ICMPChecksum: pkt.ICMPChecksum,
		SentAt:       s.now(),
	}

	if err := s.conn.Send(ctx, pkt.Bytes, dst); err != nil {
		return r, fmt.Errorf("send seq %d: %w", seq, err)
	}
	if !s.config.Wait {
		return r, nil
	}

	return r, s.awaitReply(ctx, r, msg)
}

func (s *Sender) message(seq uint16) packet.Message {
	if s.config.Kind == KindTimestamp {
		ts := packet.NewTimestamp(s.now(), seq)
		ts.ID = s.encoder.Identifier
		return ts
	}
	return packet.NewEchoRequest(s.encoder.Identifier, seq)
}

func (s *Sender) encode(dst netip.Addr, msg packet.Message) (*packet.Encoded, error) {
	if !s.conn.HeaderIncluded() {
		return s.encoder.EncodeICMP(msg)
	}
	return s.encoder.EncodeIPICMP(packet.IPv4Header{
		TOS: s.config.TOS,
		ID:  s.config.IPID,
		TTL: s.config.TTL,
		Src: s.config.Source,
		Dst: dst,
	}, msg)
}

// awaitReply reads until a reply matching req arrives or the timeout
// expires.
func (s *Sender) awaitReply(ctx context.Context, r *Result, req packet.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	id, seq := req.Identifier()
	// Datagram ICMP sockets rewrite the identifier
	matchID := s.conn.Network() != "udp4"

	for {
		reply, err := s.conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = transport.ErrTimeout
			}
			return fmt.Errorf("seq %d: %w", seq, err)
		}

		msg, err := reply.Message()
		if err != nil {
			continue
		}
		rid, rseq := msg.Identifier()
		if rseq != seq || (matchID && rid != id) {
			continue
		}

		switch m := msg.(type) {
		case *packet.EchoReply:
			if _, ok := req.(*packet.EchoRequest); !ok {
				continue
			}
		case *packet.TimestampReply:
			if _, ok := req.(*packet.Timestamp); !ok {
				continue
			}
			r.Clock = &Clock{
				Originate: m.Originate,
				Receive:   m.Receive,
				Transmit:  m.Transmit,
				Back:      packet.MillisSinceMidnight(reply.At),
			}
		default:
			continue
		}

		r.Replied = true
		r.From = reply.From
		r.RTT = reply.At.Sub(r.SentAt)
		return nil
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResolveTarget resolves a hostname or IPv4 address string.
func ResolveTarget(ctx context.Context, target string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(target); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", target)
		}
		return addr, nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", target)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %v", ErrTargetResolution, target, err)
	}
	if len(ips) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no IPv4 addresses found for %s", ErrTargetResolution, target)
	}
	return ips[0].Unmap(), nil
}
