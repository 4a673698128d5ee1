package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
)

// DefaultSnapLen is the snapshot length written to file headers.
const DefaultSnapLen = 65535

// Writer writes frames to a classic pcap file.
type Writer struct {
	w        *pcapgo.Writer
	linkType dissect.LinkType
	closer   io.Closer
}

// Create creates a pcap file at path for frames of the given link type.
func Create(path string, lt dissect.LinkType) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file %s: %w", path, err)
	}

	w, err := NewWriter(f, lt)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes a pcap file header for lt to w.
func NewWriter(w io.Writer, lt dissect.LinkType) (*Writer, error) {
	switch lt {
	case dissect.LinkTypeEthernet, dissect.LinkTypeRaw, dissect.LinkTypeLinuxSLL, dissect.LinkTypeIPv4:
	default:
		return nil, fmt.Errorf("%w: %v", dissect.ErrUnsupportedLinkType, lt)
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(DefaultSnapLen, layers.LinkType(lt)); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, linkType: lt}, nil
}

// LinkType returns the link type declared in the file header.
func (w *Writer) LinkType() dissect.LinkType {
	return w.linkType
}

// Write appends one frame captured at ts.
func (w *Writer) Write(data []byte, ts time.Time) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// WriteFrame appends f. The frame link type must match the file.
func (w *Writer) WriteFrame(f dissect.Frame) error {
	if f.LinkType != w.linkType {
		return fmt.Errorf("frame link type %v does not match file link type %v", f.LinkType, w.linkType)
	}
	return w.Write(f.Data, f.Timestamp)
}

// Close closes the underlying file when the writer was created by Create.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// EthernetFrame wraps an IPv4 packet in an Ethernet II header with
// locally administered addresses, suitable for writing to a pcap file.
func EthernetFrame(ipPacket []byte) []byte {
	b := make([]byte, 14+len(ipPacket))
	copy(b[0:6], []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02})
	copy(b[6:12], []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	b[12] = 0x08
	b[13] = 0x00
	copy(b[14:], ipPacket)
	return b
}
