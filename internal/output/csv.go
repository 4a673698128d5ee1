package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/send"
)

// CSVFormatter formats reports as CSV, one row per frame or request.
type CSVFormatter struct {
	config      Config
	columns     []string
	sendColumns []string
}

// Default CSV columns
var (
	defaultCSVColumns = []string{
		"number", "time", "relative", "length", "chain", "final",
		"src", "dst", "protocol", "icmp_type", "icmp_id", "icmp_seq",
		"problems", "error",
	}

	defaultSendCSVColumns = []string{
		"seq", "id", "bytes", "ip_checksum", "icmp_checksum",
		"replied", "from", "rtt_ms", "offset_ms", "error",
	}
)

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(config Config) *CSVFormatter {
	return &CSVFormatter{
		config:      config,
		columns:     defaultCSVColumns,
		sendColumns: defaultSendCSVColumns,
	}
}

// SetColumns allows customizing which frame columns to include.
func (f *CSVFormatter) SetColumns(columns []string) {
	f.columns = columns
}

// Format formats the report as CSV.
func (f *CSVFormatter) Format(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	switch {
	case report.Analysis != nil:
		if err := writer.Write(f.columns); err != nil {
			return nil, err
		}
		for i := range report.Analysis.Frames {
			fr := &report.Analysis.Frames[i]
			row := make([]string, len(f.columns))
			for j, col := range f.columns {
				row[j] = f.frameValue(fr, col)
			}
			if err := writer.Write(row); err != nil {
				return nil, err
			}
		}

	case report.Send != nil:
		if err := writer.Write(f.sendColumns); err != nil {
			return nil, err
		}
		for i := range report.Send.Results {
			r := &report.Send.Results[i]
			row := make([]string, len(f.sendColumns))
			for j, col := range f.sendColumns {
				row[j] = f.resultValue(r, col)
			}
			if err := writer.Write(row); err != nil {
				return nil, err
			}
		}

	default:
		return nil, errEmptyReport
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// frameValue returns the value of a frame column.
func (f *CSVFormatter) frameValue(fr *Frame, column string) string {
	ch := fr.Chain
	if column == "number" {
		return strconv.Itoa(fr.Number)
	}
	if column == "error" {
		if fr.Err != nil {
			return fr.Err.Error()
		}
		return ""
	}
	if ch == nil {
		return ""
	}

	switch column {
	case "time":
		return ch.Timestamp.UTC().Format(time.RFC3339Nano)
	case "relative":
		return formatRelative(ch)
	case "length":
		return strconv.Itoa(ch.Length)
	case "chain":
		return ch.Path()
	case "final":
		return ch.Final().String()
	case "src":
		if ch.IP != nil {
			return ch.IP.Src.String()
		}
	case "dst":
		if ch.IP != nil {
			return ch.IP.Dst.String()
		}
	case "protocol":
		if ch.IP != nil {
			return strconv.Itoa(int(ch.IP.Protocol))
		}
	case "icmp_type":
		if ch.ICMP != nil {
			return strconv.Itoa(int(ch.ICMP.Type))
		}
	case "icmp_id":
		if ch.ICMP != nil {
			return strconv.Itoa(int(ch.ICMP.ID))
		}
	case "icmp_seq":
		if ch.ICMP != nil {
			return strconv.Itoa(int(ch.ICMP.Seq))
		}
	case "problems":
		return strings.Join(ch.Problems, "; ")
	}
	return ""
}

// resultValue returns the value of a send result column.
func (f *CSVFormatter) resultValue(r *send.Result, column string) string {
	switch column {
	case "seq":
		return strconv.Itoa(int(r.Seq))
	case "id":
		return strconv.Itoa(int(r.ID))
	case "bytes":
		return strconv.Itoa(r.Bytes)
	case "ip_checksum":
		if r.IPChecksum == 0 {
			return ""
		}
		return fmt.Sprintf("0x%04x", r.IPChecksum)
	case "icmp_checksum":
		return fmt.Sprintf("0x%04x", r.ICMPChecksum)
	case "replied":
		return strconv.FormatBool(r.Replied)
	case "from":
		if r.Replied {
			return r.From.String()
		}
	case "rtt_ms":
		if r.Replied {
			return formatFloat(r.RTTMillis())
		}
	case "offset_ms":
		if r.Clock != nil {
			return strconv.FormatInt(r.Clock.Offset().Milliseconds(), 10)
		}
	case "error":
		return r.Error
	}
	return ""
}

// formatFloat formats a float for CSV output.
func formatFloat(f float64) string {
	if f <= 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", f)
}

// ContentType returns the MIME type for CSV output.
func (f *CSVFormatter) ContentType() string {
	return "text/csv"
}

// FileExtension returns the file extension for CSV output.
func (f *CSVFormatter) FileExtension() string {
	return "csv"
}
