package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/logging"
	"github.com/KilimcininKorOglu/rawhdr/internal/output"
	"github.com/KilimcininKorOglu/rawhdr/internal/send"
	"github.com/KilimcininKorOglu/rawhdr/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Send flags, shared by ping and timestamp
	count        int
	interval     time.Duration
	timeout      time.Duration
	ttl          int
	tos          int
	ipID         int
	identifier   int
	sourceIP     string
	rawHeader    bool
	noWait       bool
	unprivileged bool
)

var pingCmd = &cobra.Command{
	Use:   "ping [flags] <target>",
	Short: "Send ICMP Echo Requests",
	Long: `Send a bounded number of ICMP Echo Requests and match the replies.

With --raw the IPv4 header is built locally and sent with IP_HDRINCL,
so --ttl, --tos, --ip-id and --source are written verbatim. Raw sockets
require root or CAP_NET_RAW.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd, send.KindEcho, args[0])
	},
}

var timestampCmd = &cobra.Command{
	Use:   "timestamp [flags] <target>",
	Short: "Send an RFC 792 Timestamp request",
	Long: `Send one ICMP Timestamp request and report the responder's
receive and transmit clocks with the estimated offset from the local clock.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd, send.KindTimestamp, args[0])
	},
}

func init() {
	pingCmd.Flags().IntVarP(&count, "count", "c", 0, fmt.Sprintf("Number of requests (1-%d)", send.MaxCount))
	pingCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Delay between requests (min 10ms)")
	for _, cmd := range []*cobra.Command{pingCmd, timestampCmd} {
		addSendFlags(cmd)
	}
}

func addSendFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVarP(&timeout, "timeout", "w", 0, "Reply wait per request")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "IPv4 time to live")
	cmd.Flags().IntVar(&tos, "tos", 0, "IPv4 type of service (with --raw)")
	cmd.Flags().IntVar(&ipID, "ip-id", 0, "IPv4 identification (with --raw)")
	cmd.Flags().IntVar(&identifier, "identifier", 0, "ICMP identifier (0 = process ID)")
	cmd.Flags().StringVarP(&sourceIP, "source", "s", "", "Source IPv4 address")
	cmd.Flags().BoolVar(&rawHeader, "raw", false, "Build the IPv4 header locally (IP_HDRINCL)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Send without waiting for replies")
	cmd.Flags().BoolVar(&unprivileged, "unprivileged", false, "Fall back to an ICMP datagram socket")
}

// buildSendConfig merges config file values with explicitly set flags.
func buildSendConfig(cmd *cobra.Command, kind send.Kind) (*send.Config, bool, error) {
	flags := cmd.Flags()
	defaults := cfg.Send

	pick := func(name string, flag, config int) int {
		if flags.Changed(name) {
			return flag
		}
		return config
	}
	pickDuration := func(name string, flag, config time.Duration) time.Duration {
		if flags.Changed(name) {
			return flag
		}
		return config
	}

	sc := send.DefaultConfig()
	sc.Kind = kind
	sc.Timeout = pickDuration("timeout", timeout, defaults.Timeout)
	sc.Wait = defaults.Wait
	if flags.Changed("no-wait") {
		sc.Wait = !noWait
	}
	if kind == send.KindEcho {
		sc.Count = pick("count", count, defaults.Count)
		sc.Interval = pickDuration("interval", interval, defaults.Interval)
	}

	hdrTTL := pick("ttl", ttl, defaults.TTL)
	hdrTOS := pick("tos", tos, defaults.TOS)
	hdrID := pick("ip-id", ipID, defaults.IPID)
	id := pick("identifier", identifier, defaults.Identifier)
	switch {
	case hdrTTL < 0 || hdrTTL > 255:
		return nil, false, fmt.Errorf("ttl %d: must be between 0 and 255", hdrTTL)
	case hdrTOS < 0 || hdrTOS > 255:
		return nil, false, fmt.Errorf("tos %d: must be between 0 and 255", hdrTOS)
	case hdrID < 0 || hdrID > 0xffff:
		return nil, false, fmt.Errorf("ip-id %d: must be between 0 and 65535", hdrID)
	case id < 0 || id > 0xffff:
		return nil, false, fmt.Errorf("identifier %d: must be between 0 and 65535", id)
	}
	sc.TTL = uint8(hdrTTL)
	sc.TOS = uint8(hdrTOS)
	sc.IPID = uint16(hdrID)
	sc.Identifier = uint16(id)

	if flags.Changed("source") {
		addr, err := netip.ParseAddr(sourceIP)
		if err != nil || !addr.Unmap().Is4() {
			return nil, false, fmt.Errorf("source %q: not an IPv4 address", sourceIP)
		}
		sc.Source = addr.Unmap()
	}

	headerIncluded := defaults.HeaderIncluded
	if flags.Changed("raw") {
		headerIncluded = rawHeader
	}
	return sc, headerIncluded, sc.Validate()
}

func runSend(cmd *cobra.Command, kind send.Kind, target string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	sc, headerIncluded, err := buildSendConfig(cmd, kind)
	if err != nil {
		return err
	}

	writer, format, err := newWriter()
	if err != nil {
		return err
	}

	conn, err := transport.Open(transportConfig(sc, headerIncluded))
	if err != nil {
		if transport.IsPermissionError(err) {
			return fmt.Errorf("%w (raw sockets need root or CAP_NET_RAW; try --unprivileged)", err)
		}
		return err
	}
	defer conn.Close()

	target = cfg.Resolve(target)

	// Text output streams each result as it completes
	var text *output.TextFormatter
	if format == output.FormatText {
		text = output.NewTextFormatter(output.Config{Colors: !noColor && writer.IsTTY()})
		sc.OnResult = func(r *send.Result) {
			streamLine(writer, text.FormatResult(r))
		}
	}

	sender, err := send.New(sc, conn)
	if err != nil {
		return err
	}
	logging.WithFields(logrus.Fields{
		"target":     target,
		"kind":       kind,
		"count":      sc.Count,
		"network":    conn.Network(),
		"identifier": sender.Identifier(),
	}).Info("sending")

	if text != nil {
		streamLine(writer, fmt.Sprintf("%s %s\n", strings.ToUpper(kind.String()), target))
	}

	report, err := sender.Run(ctx, target)
	if report == nil {
		return err
	}
	if err != nil {
		logging.Warnf("stopped early: %v", err)
	}

	if text != nil {
		return writer.WriteString(text.FormatSummary(report))
	}
	return writer.Write(output.NewSendReport(report))
}

// streamLine writes a progress line. A failed write is logged and the
// plan keeps running.
func streamLine(w *output.Writer, line string) {
	if err := w.WriteString(line); err != nil {
		logging.Warnf("write failed: %v", err)
	}
}

// transportConfig maps a send plan onto socket options. A header-included
// socket listens on the unspecified address since the source only goes
// into the IPv4 header it writes.
func transportConfig(sc *send.Config, headerIncluded bool) transport.Config {
	tc := transport.Config{
		HeaderIncluded: headerIncluded,
		TTL:            int(sc.TTL),
		Timeout:        sc.Timeout,
		Unprivileged:   unprivileged,
	}
	if !headerIncluded {
		tc.ListenAddr = sc.Source
	}
	return tc
}
