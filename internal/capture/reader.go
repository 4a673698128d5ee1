// Package capture reads and writes capture files for dissection.
package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
)

// Capture errors.
var (
	// ErrUnknownFormat indicates the input is neither pcap nor pcapng
	ErrUnknownFormat = errors.New("unknown capture file format")
)

// File magic numbers.
const (
	magicPcapMicro = 0xa1b2c3d4
	magicPcapNano  = 0xa1b23c4d
	magicPcapng    = 0x0a0d0d0a
)

// Format is a capture file format.
type Format int

const (
	// FormatPcap is the classic libpcap format
	FormatPcap Format = iota
	// FormatPcapng is the pcap next generation format
	FormatPcapng
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatPcapng {
		return "pcapng"
	}
	return "pcap"
}

// packetSource is implemented by pcapgo.Reader and pcapgo.NgReader.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader yields frames from a capture file in file order.
type Reader struct {
	src    packetSource
	format Format
	closer io.Closer
	count  int
}

// Open opens a pcap or pcapng file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader detects the capture format from the first four bytes of r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	le := binary.LittleEndian.Uint32(magic)
	be := binary.BigEndian.Uint32(magic)

	var rd *Reader
	switch {
	case be == magicPcapng:
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		rd = &Reader{src: ng, format: FormatPcapng}

	case le == magicPcapMicro || be == magicPcapMicro || le == magicPcapNano || be == magicPcapNano:
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, err
		}
		rd = &Reader{src: pr, format: FormatPcap}

	default:
		return nil, fmt.Errorf("%w: magic 0x%08x", ErrUnknownFormat, be)
	}

	// A zero Frame.LinkType means Ethernet, so LINKTYPE_NULL frames
	// cannot be handed to the dissector
	if rd.src.LinkType() == layers.LinkTypeNull {
		return nil, fmt.Errorf("%w: %s", dissect.ErrUnsupportedLinkType, layers.LinkTypeNull)
	}
	return rd, nil
}

// Format returns the detected file format.
func (r *Reader) Format() Format {
	return r.format
}

// LinkType returns the link type of the capture.
func (r *Reader) LinkType() dissect.LinkType {
	return dissect.LinkType(r.src.LinkType())
}

// Count returns the number of frames read so far.
func (r *Reader) Count() int {
	return r.count
}

// Next returns the next frame, or io.EOF at the end of the file.
func (r *Reader) Next() (dissect.Frame, error) {
	data, ci, err := r.src.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return dissect.Frame{}, io.EOF
		}
		return dissect.Frame{}, fmt.Errorf("failed to read packet %d: %w", r.count+1, err)
	}
	r.count++

	return dissect.Frame{
		Data:      data,
		Timestamp: ci.Timestamp,
		LinkType:  r.LinkType(),
	}, nil
}

// Each calls fn for every remaining frame. It stops at the end of the
// file, when fn returns an error, or when ctx is done.
func (r *Reader) Each(ctx context.Context, fn func(dissect.Frame) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// ReadAll reads every remaining frame.
func (r *Reader) ReadAll(ctx context.Context) ([]dissect.Frame, error) {
	var frames []dissect.Frame
	err := r.Each(ctx, func(f dissect.Frame) error {
		frames = append(frames, f)
		return nil
	})
	return frames, err
}

// Close closes the underlying file when the reader was opened by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
