// Package output provides formatting and output functionality for
// dissection and send results.
package output

import (
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
)

// Format represents the output format type.
type Format int

const (
	// FormatText is the streaming one-line-per-frame output
	FormatText Format = iota
	// FormatTable is the detailed table output
	FormatTable
	// FormatJSON is JSON output
	FormatJSON
	// FormatCSV is CSV output
	FormatCSV
	// FormatHTML is HTML report output
	FormatHTML
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatTable:
		return "table"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatHTML:
		return "html"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "text", "":
		return FormatText, nil
	case "table", "verbose":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "html":
		return FormatHTML, nil
	}
	return FormatText, fmt.Errorf("unknown output format %q", name)
}

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format converts a Report to formatted output bytes.
	Format(report *Report) ([]byte, error)

	// ContentType returns the MIME type for the output.
	ContentType() string

	// FileExtension returns the typical file extension for the output.
	FileExtension() string
}

// Config holds configuration for formatters.
type Config struct {
	// Colors enables ANSI color output
	Colors bool

	// OmitFrames renders only the analysis summary
	OmitFrames bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Colors: true,
	}
}

// NewFormatter creates a formatter based on the specified format.
func NewFormatter(format Format, config Config) Formatter {
	switch format {
	case FormatText:
		return NewTextFormatter(config)
	case FormatTable:
		return NewTableFormatter(config)
	case FormatJSON:
		return NewJSONFormatter(config)
	case FormatCSV:
		return NewCSVFormatter(config)
	case FormatHTML:
		return NewHTMLFormatter(config)
	default:
		return NewTextFormatter(config)
	}
}

// errEmptyReport is returned for a Report with nothing to render.
var errEmptyReport = fmt.Errorf("report has no analysis or send results")

// Helper functions

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatICMPInfo describes an echo or timestamp header.
func formatICMPInfo(info *dissect.ICMPInfo) string {
	return fmt.Sprintf("id=0x%04x seq=%d", info.ID, info.Seq)
}

// formatICMPTypeCode describes any other ICMP header.
func formatICMPTypeCode(info *dissect.ICMPInfo) string {
	return fmt.Sprintf("type=%d code=%d", info.Type, info.Code)
}

// formatRelative formats a relative capture time in seconds.
func formatRelative(ch *dissect.Chain) string {
	if ch == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", ch.Relative.Seconds())
}

// roundFloat rounds val to precision decimal places.
func roundFloat(val float64, precision int) float64 {
	if precision == 0 {
		return float64(int(val + 0.5))
	}
	p := float64(1)
	for i := 0; i < precision; i++ {
		p *= 10
	}
	return float64(int(val*p+0.5)) / p
}
