package output

import (
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/send"
)

// Report is what a formatter renders. Exactly one of Analysis and Send
// is set.
type Report struct {
	Analysis *Analysis
	Send     *send.Report
}

// Analysis is the result of dissecting a capture.
type Analysis struct {
	// Source is the capture file path
	Source string

	// FileFormat is pcap or pcapng
	FileFormat string

	// LinkType is the capture link type
	LinkType dissect.LinkType

	// Frames holds one entry per frame in capture order
	Frames []Frame

	// Stats are the per-classification counts
	Stats *dissect.Stats

	// Elapsed is the time the dissection took
	Elapsed time.Duration
}

// Frame is one dissected frame.
type Frame struct {
	// Number is the 1-based position in the capture
	Number int
	Chain  *dissect.Chain
	Err    error
}

// NewAnalysisReport wraps dissection results in a Report and computes
// statistics over them.
func NewAnalysisReport(source, fileFormat string, lt dissect.LinkType, results []dissect.Result) *Report {
	a := &Analysis{
		Source:     source,
		FileFormat: fileFormat,
		LinkType:   lt,
		Frames:     make([]Frame, len(results)),
		Stats:      dissect.NewStats(),
	}
	for i, r := range results {
		a.Frames[i] = Frame{Number: r.Index + 1, Chain: r.Chain, Err: r.Err}
		a.Stats.Add(r.Chain, r.Err)
	}
	return &Report{Analysis: a}
}

// NewSendReport wraps a send report.
func NewSendReport(r *send.Report) *Report {
	return &Report{Send: r}
}

// frameSummary holds display strings common to every formatter.
type frameSummary struct {
	Source      string
	Destination string
	Protocol    string
	Info        string
}

// summarizeFrame extracts display strings from a dissected frame.
func summarizeFrame(fr *Frame) frameSummary {
	var s frameSummary
	ch := fr.Chain
	if ch == nil {
		return s
	}

	s.Protocol = ch.Final().String()
	if ch.IP != nil {
		s.Source = ch.IP.Src.String()
		s.Destination = ch.IP.Dst.String()
	}
	if ch.ICMP != nil {
		switch ch.Final().Kind {
		case dissect.KindEchoRequest, dissect.KindEchoReply, dissect.KindTimestampRequest:
			s.Info = formatICMPInfo(ch.ICMP)
		default:
			s.Info = formatICMPTypeCode(ch.ICMP)
		}
	}
	if fr.Err != nil {
		s.Info = fr.Err.Error()
	}
	return s
}
