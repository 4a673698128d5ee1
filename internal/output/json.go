package output

import (
	"encoding/json"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/send"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	config Config
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: true, // Default to pretty-printed
	}
}

// NewJSONFormatterCompact creates a JSON formatter with compact output.
func NewJSONFormatterCompact(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: false,
	}
}

// SetPretty enables or disables pretty-printing.
func (f *JSONFormatter) SetPretty(pretty bool) {
	f.pretty = pretty
}

// Format formats the report as JSON.
func (f *JSONFormatter) Format(report *Report) ([]byte, error) {
	var output interface{}
	switch {
	case report.Analysis != nil:
		output = f.toJSONAnalysis(report.Analysis)
	case report.Send != nil:
		output = f.toJSONSend(report.Send)
	default:
		return nil, errEmptyReport
	}

	if f.pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

// JSONAnalysis is the JSON-serializable representation of a dissection.
type JSONAnalysis struct {
	Source     string         `json:"source"`
	FileFormat string         `json:"file_format"`
	LinkType   string         `json:"link_type"`
	Frames     []JSONFrame    `json:"frames,omitempty"`
	Stats      *dissect.Stats `json:"stats"`
}

// JSONFrame represents a single frame in JSON format.
type JSONFrame struct {
	Number    int       `json:"number"`
	Timestamp string    `json:"timestamp"`
	Relative  float64   `json:"relative_s"`
	Length    int       `json:"length"`
	Chain     []string  `json:"chain"`
	Final     string    `json:"final"`
	VLANs     []uint16  `json:"vlans,omitempty"`
	IP        *JSONIP   `json:"ip,omitempty"`
	ICMP      *JSONICMP `json:"icmp,omitempty"`
	Problems  []string  `json:"problems,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JSONIP represents IPv4 header fields in JSON format.
type JSONIP struct {
	Src         string `json:"src"`
	Dst         string `json:"dst"`
	TTL         uint8  `json:"ttl"`
	Protocol    uint8  `json:"protocol"`
	TotalLength uint16 `json:"total_length"`
	ID          uint16 `json:"id"`
	Checksum    uint16 `json:"checksum"`
}

// JSONICMP represents ICMP header fields in JSON format.
type JSONICMP struct {
	Type     uint8  `json:"type"`
	Code     uint8  `json:"code"`
	Checksum uint16 `json:"checksum"`
	ID       uint16 `json:"id"`
	Seq      uint16 `json:"seq"`
	Length   int    `json:"length"`
}

// JSONSend is the JSON-serializable representation of a send plan.
type JSONSend struct {
	Target         string       `json:"target"`
	ResolvedIP     string       `json:"resolved_ip"`
	Kind           string       `json:"kind"`
	HeaderIncluded bool         `json:"header_included"`
	Timestamp      string       `json:"timestamp"`
	Results        []JSONResult `json:"results"`
	Summary        send.Summary `json:"summary"`
}

// JSONResult represents one request in JSON format.
type JSONResult struct {
	Seq          uint16      `json:"seq"`
	ID           uint16      `json:"id"`
	Bytes        int         `json:"bytes"`
	IPChecksum   uint16      `json:"ip_checksum,omitempty"`
	ICMPChecksum uint16      `json:"icmp_checksum"`
	Replied      bool        `json:"replied"`
	From         string      `json:"from,omitempty"`
	RTT          float64     `json:"rtt_ms,omitempty"`
	Clock        *send.Clock `json:"clock,omitempty"`
	OffsetMs     *int64      `json:"offset_ms,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// toJSONAnalysis converts an Analysis to JSONAnalysis.
func (f *JSONFormatter) toJSONAnalysis(a *Analysis) *JSONAnalysis {
	output := &JSONAnalysis{
		Source:     a.Source,
		FileFormat: a.FileFormat,
		LinkType:   a.LinkType.String(),
		Stats:      a.Stats,
	}
	if f.config.OmitFrames {
		return output
	}

	output.Frames = make([]JSONFrame, len(a.Frames))
	for i := range a.Frames {
		output.Frames[i] = toJSONFrame(&a.Frames[i])
	}
	return output
}

// toJSONFrame converts a Frame to JSONFrame.
func toJSONFrame(fr *Frame) JSONFrame {
	jf := JSONFrame{Number: fr.Number}
	if fr.Err != nil {
		jf.Error = fr.Err.Error()
	}

	ch := fr.Chain
	if ch == nil {
		return jf
	}
	jf.Timestamp = ch.Timestamp.Format(time.RFC3339Nano)
	jf.Relative = roundFloat(ch.Relative.Seconds(), 6)
	jf.Length = ch.Length
	jf.Final = ch.Final().String()
	jf.VLANs = ch.VLANs
	jf.Problems = ch.Problems
	jf.Chain = make([]string, len(ch.Layers))
	for i, l := range ch.Layers {
		jf.Chain[i] = l.String()
	}

	if ch.IP != nil {
		jf.IP = &JSONIP{
			Src:         ch.IP.Src.String(),
			Dst:         ch.IP.Dst.String(),
			TTL:         ch.IP.TTL,
			Protocol:    ch.IP.Protocol,
			TotalLength: ch.IP.TotalLength,
			ID:          ch.IP.ID,
			Checksum:    ch.IP.Checksum,
		}
	}
	if ch.ICMP != nil {
		jf.ICMP = &JSONICMP{
			Type:     ch.ICMP.Type,
			Code:     ch.ICMP.Code,
			Checksum: ch.ICMP.Checksum,
			ID:       ch.ICMP.ID,
			Seq:      ch.ICMP.Seq,
			Length:   ch.ICMP.Length,
		}
	}
	return jf
}

// toJSONSend converts a send Report to JSONSend.
func (f *JSONFormatter) toJSONSend(r *send.Report) *JSONSend {
	output := &JSONSend{
		Target:         r.Target,
		ResolvedIP:     r.ResolvedIP.String(),
		Kind:           r.Kind,
		HeaderIncluded: r.HeaderIncluded,
		Timestamp:      r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		Results:        make([]JSONResult, len(r.Results)),
		Summary: send.Summary{
			Sent:        r.Summary.Sent,
			Received:    r.Summary.Received,
			LossPercent: roundFloat(r.Summary.LossPercent, 1),
			MinRTT:      roundFloat(r.Summary.MinRTT, 3),
			AvgRTT:      roundFloat(r.Summary.AvgRTT, 3),
			MaxRTT:      roundFloat(r.Summary.MaxRTT, 3),
		},
	}

	for i := range r.Results {
		res := &r.Results[i]
		jr := JSONResult{
			Seq:          res.Seq,
			ID:           res.ID,
			Bytes:        res.Bytes,
			IPChecksum:   res.IPChecksum,
			ICMPChecksum: res.ICMPChecksum,
			Replied:      res.Replied,
			Clock:        res.Clock,
			Error:        res.Error,
		}
		if res.Replied {
			jr.From = res.From.String()
			jr.RTT = roundFloat(res.RTTMillis(), 3)
		}
		if res.Clock != nil {
			ms := res.Clock.Offset().Milliseconds()
			jr.OffsetMs = &ms
		}
		output.Results[i] = jr
	}

	return output
}

// ContentType returns the MIME type for JSON output.
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// FileExtension returns the file extension for JSON output.
func (f *JSONFormatter) FileExtension() string {
	return "json"
}
