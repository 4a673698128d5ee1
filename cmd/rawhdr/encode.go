package main

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/capture"
	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/output"
	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
	"github.com/spf13/cobra"
)

var (
	encodeType  string
	encodeDst   string
	encodeSrc   string
	encodeTTL   int
	encodeTOS   int
	encodeIPID  int
	encodeID    int
	encodeSeq   int
	icmpOnly    bool
	pcapOut     string
	pcapRawLink bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build request bytes offline and print a hex dump",
	Long: `Build an Echo or Timestamp request with its IPv4 header, fill in
both checksums and print the bytes. Nothing is sent.

With --pcap the packet is also written to a capture file that
"rawhdr analyze" or any pcap reader can open.`,
	Args: cobra.NoArgs,
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVarP(&encodeType, "type", "t", "echo", "Message type: echo, timestamp")
	encodeCmd.Flags().StringVar(&encodeDst, "dst", "127.0.0.1", "Destination IPv4 address")
	encodeCmd.Flags().StringVar(&encodeSrc, "src", "", "Source IPv4 address (default 0.0.0.0)")
	encodeCmd.Flags().IntVar(&encodeTTL, "ttl", 64, "IPv4 time to live")
	encodeCmd.Flags().IntVar(&encodeTOS, "tos", 0, "IPv4 type of service")
	encodeCmd.Flags().IntVar(&encodeIPID, "ip-id", 0, "IPv4 identification")
	encodeCmd.Flags().IntVar(&encodeID, "identifier", 0, "ICMP identifier (0 = process ID)")
	encodeCmd.Flags().IntVar(&encodeSeq, "seq", 1, "ICMP sequence number")
	encodeCmd.Flags().BoolVar(&icmpOnly, "icmp-only", false, "Omit the IPv4 header")
	encodeCmd.Flags().StringVar(&pcapOut, "pcap", "", "Also write the packet to this pcap file")
	encodeCmd.Flags().BoolVar(&pcapRawLink, "raw-link", false, "Write the pcap with the raw IP link type instead of Ethernet")
}

func runEncode(cmd *cobra.Command, args []string) error {
	for _, v := range []struct {
		name     string
		val, max int
	}{
		{"ttl", encodeTTL, 0xff},
		{"tos", encodeTOS, 0xff},
		{"ip-id", encodeIPID, 0xffff},
		{"identifier", encodeID, 0xffff},
		{"seq", encodeSeq, 0xffff},
	} {
		if v.val < 0 || v.val > v.max {
			return fmt.Errorf("%s %d: must be between 0 and %d", v.name, v.val, v.max)
		}
	}

	now := time.Now()
	var msg packet.Message
	switch encodeType {
	case "echo":
		msg = packet.NewEchoRequest(uint16(encodeID), uint16(encodeSeq))
	case "timestamp":
		ts := packet.NewTimestamp(now, uint16(encodeSeq))
		ts.ID = uint16(encodeID)
		msg = ts
	default:
		return fmt.Errorf("unknown message type %q (want echo or timestamp)", encodeType)
	}

	enc := packet.NewEncoder()
	if encodeID != 0 {
		enc.Identifier = uint16(encodeID)
	}

	if icmpOnly {
		if pcapOut != "" {
			return fmt.Errorf("--pcap needs the IPv4 header; drop --icmp-only")
		}
		e, err := enc.EncodeICMP(msg)
		if err != nil {
			return err
		}
		fmt.Printf("ICMP %s, %d bytes, icmp checksum 0x%04x\n", encodeType, len(e.Bytes), e.ICMPChecksum)
		return output.HexDump(cmd.OutOrStdout(), e.Bytes)
	}

	ip, err := encodeHeader()
	if err != nil {
		return err
	}
	e, err := enc.EncodeIPICMP(ip, msg)
	if err != nil {
		if packet.IsInvalidInput(err) {
			return fmt.Errorf("invalid header flags: %w", err)
		}
		return err
	}

	fmt.Printf("IPv4 + ICMP %s, %d bytes, ip checksum 0x%04x, icmp checksum 0x%04x\n",
		encodeType, len(e.Bytes), e.IPChecksum, e.ICMPChecksum)
	if err := output.HexDump(cmd.OutOrStdout(), e.Bytes); err != nil {
		return err
	}

	frame := dissect.Frame{Data: e.Bytes, Timestamp: now, LinkType: dissect.LinkTypeRaw}
	if !pcapRawLink {
		frame = dissect.Frame{Data: capture.EthernetFrame(e.Bytes), Timestamp: now, LinkType: dissect.LinkTypeEthernet}
	}
	ch, err := dissect.Dissect(frame, dissect.Options{VerifyChecksums: true})
	if err != nil {
		return fmt.Errorf("encoded packet does not dissect: %w", err)
	}
	fmt.Printf("\n%s\n", ch.Path())
	for _, p := range ch.Problems {
		fmt.Printf("  problem: %s\n", p)
	}

	if pcapOut == "" {
		return nil
	}
	w, err := capture.Create(pcapOut, frame.LinkType)
	if err != nil {
		return err
	}
	if err := w.WriteFrame(frame); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", pcapOut)
	return nil
}

// encodeHeader builds the IPv4 header from the encode flags.
func encodeHeader() (packet.IPv4Header, error) {
	dst, err := netip.ParseAddr(encodeDst)
	if err != nil {
		return packet.IPv4Header{}, fmt.Errorf("dst %q: %w", encodeDst, err)
	}
	ip := packet.IPv4Header{
		TOS: uint8(encodeTOS),
		ID:  uint16(encodeIPID),
		TTL: uint8(encodeTTL),
		Dst: dst.Unmap(),
	}
	if encodeSrc != "" {
		src, err := netip.ParseAddr(encodeSrc)
		if err != nil {
			return ip, fmt.Errorf("src %q: %w", encodeSrc, err)
		}
		ip.Src = src.Unmap()
	}
	return ip, nil
}
