package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/send"
	"github.com/fatih/color"
)

// TextFormatter formats dissections one line per frame and send plans
// in classic ping style.
type TextFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(config Config) *TextFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TextFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the report as plain text.
func (f *TextFormatter) Format(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	switch {
	case report.Analysis != nil:
		a := report.Analysis
		fmt.Fprintf(&buf, "%s: %s, link type %s, %d frames\n\n",
			a.Source, a.FileFormat, a.LinkType, len(a.Frames))
		if !f.config.OmitFrames {
			for i := range a.Frames {
				f.formatFrame(&buf, &a.Frames[i])
			}
			buf.WriteString("\n")
		}
		f.formatStats(&buf, a.Stats)

	case report.Send != nil:
		r := report.Send
		fmt.Fprintf(&buf, "%s %s (%s)\n", strings.ToUpper(r.Kind), r.Target, r.ResolvedIP)
		for i := range r.Results {
			f.formatResult(&buf, &r.Results[i])
		}
		f.formatSummary(&buf, r)

	default:
		return nil, errEmptyReport
	}

	return buf.Bytes(), nil
}

// FormatFrame formats a single frame and returns it as a string.
// This can be used for streaming output.
func (f *TextFormatter) FormatFrame(fr *Frame) string {
	var buf bytes.Buffer
	f.formatFrame(&buf, fr)
	return buf.String()
}

// FormatResult formats a single send result for streaming output.
func (f *TextFormatter) FormatResult(r *send.Result) string {
	var buf bytes.Buffer
	f.formatResult(&buf, r)
	return buf.String()
}

// FormatStats formats the classification counts for streaming output.
func (f *TextFormatter) FormatStats(s *dissect.Stats) string {
	var buf bytes.Buffer
	f.formatStats(&buf, s)
	return buf.String()
}

// FormatSummary formats the statistics block of a send report.
func (f *TextFormatter) FormatSummary(r *send.Report) string {
	var buf bytes.Buffer
	f.formatSummary(&buf, r)
	return buf.String()
}

// formatFrame formats a single frame line.
func (f *TextFormatter) formatFrame(buf *bytes.Buffer, fr *Frame) {
	num := fmt.Sprintf("%5d  ", fr.Number)
	if f.colors != nil {
		num = f.colors.Number.Sprint(num)
	}
	buf.WriteString(num)

	ch := fr.Chain
	if ch == nil {
		buf.WriteString("\n")
		return
	}
	fmt.Fprintf(buf, "%s  %4d  ", formatRelative(ch), ch.Length)

	path := ch.Path()
	if f.colors != nil {
		path = f.colors.Chain.Sprint(path)
	}
	buf.WriteString(path)

	s := summarizeFrame(fr)
	if s.Source != "" {
		addrs := fmt.Sprintf("%s → %s", s.Source, s.Destination)
		if f.colors != nil {
			addrs = f.colors.IP.Sprint(addrs)
		}
		fmt.Fprintf(buf, "  %s", addrs)
	}
	if ch.ICMP != nil && fr.Err == nil {
		fmt.Fprintf(buf, "  %s", s.Info)
	}
	if len(ch.VLANs) > 0 {
		fmt.Fprintf(buf, "  vlan=%s", joinVLANs(ch.VLANs))
	}

	if fr.Err != nil {
		msg := fmt.Sprintf("  [%s]", fr.Err)
		if f.colors != nil {
			msg = f.colors.Error.Sprint(msg)
		}
		buf.WriteString(msg)
	}
	for _, p := range ch.Problems {
		msg := fmt.Sprintf("  (%s)", p)
		if f.colors != nil {
			msg = f.colors.Warning.Sprint(msg)
		}
		buf.WriteString(msg)
	}

	buf.WriteString("\n")
}

// formatStats writes the classification counts.
func (f *TextFormatter) formatStats(buf *bytes.Buffer, s *dissect.Stats) {
	header := "Classification:"
	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	buf.WriteString(header + "\n")
	for _, c := range s.Sorted() {
		fmt.Fprintf(buf, "  %-24s %d\n", c.Name, c.Count)
	}
	fmt.Fprintf(buf, "\n%d frames, %d bytes, %d truncated, %d with problems\n",
		s.Frames, s.Bytes, s.Truncated, s.Problems)
}

// formatResult formats a single request line.
func (f *TextFormatter) formatResult(buf *bytes.Buffer, r *send.Result) {
	if r.Error != "" && !r.Replied {
		msg := fmt.Sprintf("seq=%d: %s", r.Seq, r.Error)
		if f.colors != nil {
			msg = f.colors.Timeout.Sprint(msg)
		}
		buf.WriteString(msg + "\n")
		return
	}
	if !r.Replied {
		fmt.Fprintf(buf, "%d bytes sent: id=0x%04x seq=%d icmp_csum=0x%04x\n",
			r.Bytes, r.ID, r.Seq, r.ICMPChecksum)
		return
	}

	from := r.From.String()
	if f.colors != nil {
		from = f.colors.IP.Sprint(from)
	}
	fmt.Fprintf(buf, "reply from %s: id=0x%04x seq=%d time=%s",
		from, r.ID, r.Seq, f.colorizeRTT(r.RTTMillis()))
	if r.Clock != nil {
		fmt.Fprintf(buf, " orig=%d recv=%d xmit=%d offset=%s",
			r.Clock.Originate, r.Clock.Receive, r.Clock.Transmit, r.Clock.Offset())
	}
	buf.WriteString("\n")
}

// formatSummary writes the ping-style statistics block.
func (f *TextFormatter) formatSummary(buf *bytes.Buffer, r *send.Report) {
	s := r.Summary
	fmt.Fprintf(buf, "\n--- %s statistics ---\n", r.Target)
	fmt.Fprintf(buf, "%d requests sent, %d replies received, %.1f%% loss\n",
		s.Sent, s.Received, s.LossPercent)
	if s.Received > 0 {
		fmt.Fprintf(buf, "rtt min/avg/max = %.3f/%.3f/%.3f ms\n", s.MinRTT, s.AvgRTT, s.MaxRTT)
	}
}

// colorizeRTT returns a colored RTT string based on latency thresholds.
func (f *TextFormatter) colorizeRTT(rtt float64) string {
	str := fmt.Sprintf("%.3f ms", rtt)
	if f.colors == nil {
		return str
	}

	switch {
	case rtt < 50:
		return f.colors.RTTLow.Sprint(str)
	case rtt < 150:
		return f.colors.RTTMed.Sprint(str)
	default:
		return f.colors.RTTHigh.Sprint(str)
	}
}

// ContentType returns the MIME type for text output.
func (f *TextFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for text output.
func (f *TextFormatter) FileExtension() string {
	return "txt"
}

// ColorScheme defines colors for different output elements.
type ColorScheme struct {
	Number  *color.Color
	Chain   *color.Color
	IP      *color.Color
	RTTLow  *color.Color // < 50ms
	RTTMed  *color.Color // 50-150ms
	RTTHigh *color.Color // > 150ms
	Timeout *color.Color
	Warning *color.Color
	Error   *color.Color
	Header  *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Number:  color.New(color.FgCyan, color.Bold),
		Chain:   color.New(color.FgGreen),
		IP:      color.New(color.FgWhite),
		RTTLow:  color.New(color.FgGreen),
		RTTMed:  color.New(color.FgYellow),
		RTTHigh: color.New(color.FgRed),
		Timeout: color.New(color.FgRed, color.Bold),
		Warning: color.New(color.FgYellow),
		Error:   color.New(color.FgRed),
		Header:  color.New(color.FgWhite, color.Bold),
	}
}

func joinVLANs(ids []uint16) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
