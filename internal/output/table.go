package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/rawhdr/internal/send"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats reports as a detailed table.
type TableFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(config Config) *TableFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TableFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the report as a table.
func (f *TableFormatter) Format(report *Report) ([]byte, error) {
	switch {
	case report.Analysis != nil:
		return f.formatAnalysis(report.Analysis), nil
	case report.Send != nil:
		return f.formatSend(report.Send), nil
	}
	return nil, errEmptyReport
}

func (f *TableFormatter) formatAnalysis(a *Analysis) []byte {
	var buf bytes.Buffer

	f.writeHeader(&buf, fmt.Sprintf("Capture: %s (%s, %s)\nFrames: %d\n\n",
		a.Source, a.FileFormat, a.LinkType, len(a.Frames)))

	if !f.config.OmitFrames {
		table := tablewriter.NewWriter(&buf)
		f.configureTable(table)
		table.SetHeader([]string{"No.", "Time", "Length", "Source", "Destination", "Chain", "Info"})
		for i := range a.Frames {
			table.Append(f.formatFrameRow(&a.Frames[i]))
		}
		table.Render()
		buf.WriteString("\n")
	}

	stats := tablewriter.NewWriter(&buf)
	f.configureTable(stats)
	stats.SetHeader([]string{"Classification", "Frames"})
	for _, c := range a.Stats.Sorted() {
		stats.Append([]string{c.Name, fmt.Sprintf("%d", c.Count)})
	}
	stats.Render()

	buf.WriteString("\nSummary:\n")
	fmt.Fprintf(&buf, "  Frames:        %d\n", a.Stats.Frames)
	fmt.Fprintf(&buf, "  Bytes:         %d\n", a.Stats.Bytes)
	fmt.Fprintf(&buf, "  Truncated:     %d\n", a.Stats.Truncated)
	fmt.Fprintf(&buf, "  Unsupported:   %d\n", a.Stats.Unsupported)
	fmt.Fprintf(&buf, "  Problems:      %d\n", a.Stats.Problems)

	return buf.Bytes()
}

func (f *TableFormatter) formatSend(r *send.Report) []byte {
	var buf bytes.Buffer

	header := fmt.Sprintf("Target: %s (%s)\n", r.Target, r.ResolvedIP)
	mode := "kernel"
	if r.HeaderIncluded {
		mode = "local"
	}
	header += fmt.Sprintf("Kind: %s | IPv4 header: %s | Time: %s\n\n",
		strings.ToUpper(r.Kind), mode, r.Timestamp.Format("2006-01-02 15:04:05"))
	f.writeHeader(&buf, header)

	table := tablewriter.NewWriter(&buf)
	f.configureTable(table)
	table.SetHeader([]string{"Seq", "ID", "Bytes", "ICMP Csum", "From", "RTT", "Status"})
	for i := range r.Results {
		table.Append(f.formatResultRow(&r.Results[i]))
	}
	table.Render()

	s := r.Summary
	buf.WriteString("\nSummary:\n")
	fmt.Fprintf(&buf, "  Sent:          %d\n", s.Sent)
	fmt.Fprintf(&buf, "  Received:      %d\n", s.Received)
	fmt.Fprintf(&buf, "  Packet Loss:   %.1f%%\n", s.LossPercent)
	if s.Received > 0 {
		fmt.Fprintf(&buf, "  RTT:           %.2f / %.2f / %.2f ms\n", s.MinRTT, s.AvgRTT, s.MaxRTT)
	}

	return buf.Bytes()
}

// writeHeader writes the report header information.
func (f *TableFormatter) writeHeader(buf *bytes.Buffer, header string) {
	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	buf.WriteString(header)
}

// configureTable sets up the table appearance.
func (f *TableFormatter) configureTable(table *tablewriter.Table) {
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
}

// formatFrameRow formats a single frame as a table row.
func (f *TableFormatter) formatFrameRow(fr *Frame) []string {
	s := summarizeFrame(fr)
	row := []string{fmt.Sprintf("%d", fr.Number)}
	if fr.Chain == nil {
		return append(row, "-", "-", "-", "-", "-", s.Info)
	}

	src, dst := s.Source, s.Destination
	if src == "" {
		src, dst = "-", "-"
	}
	info := s.Info
	if fr.Err == nil && len(fr.Chain.Problems) > 0 {
		info = strings.TrimSpace(info + " " + strings.Join(fr.Chain.Problems, "; "))
		if f.colors != nil {
			info = f.colors.Warning.Sprint(info)
		}
	} else if fr.Err != nil && f.colors != nil {
		info = f.colors.Error.Sprint(info)
	}

	return append(row,
		formatRelative(fr.Chain),
		fmt.Sprintf("%d", fr.Chain.Length),
		src,
		dst,
		truncateString(fr.Chain.Path(), 60),
		truncateString(info, 60))
}

// formatResultRow formats a single send result as a table row.
func (f *TableFormatter) formatResultRow(r *send.Result) []string {
	row := []string{
		fmt.Sprintf("%d", r.Seq),
		fmt.Sprintf("0x%04x", r.ID),
		fmt.Sprintf("%d", r.Bytes),
		fmt.Sprintf("0x%04x", r.ICMPChecksum),
	}

	if !r.Replied {
		status := "sent"
		if r.Error != "" {
			status = r.Error
			if f.colors != nil {
				status = f.colors.Timeout.Sprint(status)
			}
		}
		return append(row, "-", "-", status)
	}

	status := "reply"
	if r.Clock != nil {
		status = fmt.Sprintf("offset %s", r.Clock.Offset())
	}
	return append(row, r.From.String(), f.formatRTT(r.RTTMillis()), status)
}

// formatRTT formats an RTT value with optional coloring.
func (f *TableFormatter) formatRTT(rtt float64) string {
	if rtt <= 0 {
		return "-"
	}

	str := fmt.Sprintf("%.2f", rtt)

	if f.colors != nil {
		switch {
		case rtt < 50:
			str = f.colors.RTTLow.Sprint(str)
		case rtt < 150:
			str = f.colors.RTTMed.Sprint(str)
		default:
			str = f.colors.RTTHigh.Sprint(str)
		}
	}

	return str
}

// ContentType returns the MIME type for table output.
func (f *TableFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for table output.
func (f *TableFormatter) FileExtension() string {
	return "txt"
}
