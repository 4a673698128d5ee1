package output

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// HTMLFormatter formats reports as a standalone HTML page.
type HTMLFormatter struct {
	config   Config
	template *template.Template
	now      func() time.Time
}

// NewHTMLFormatter creates a new HTML formatter.
func NewHTMLFormatter(config Config) *HTMLFormatter {
	tmpl := template.Must(template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05 MST")
		},
	}).Parse(htmlTemplate))

	return &HTMLFormatter{
		config:   config,
		template: tmpl,
		now:      time.Now,
	}
}

// Format formats the report as an HTML page.
func (f *HTMLFormatter) Format(report *Report) ([]byte, error) {
	var data *htmlData
	switch {
	case report.Analysis != nil:
		data = f.prepareAnalysis(report.Analysis)
	case report.Send != nil:
		data = f.prepareSend(report)
	default:
		return nil, errEmptyReport
	}
	data.GeneratedAt = f.now()

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.Bytes(), nil
}

// htmlData holds the data for the HTML template.
type htmlData struct {
	Title       string
	Info        []htmlItem
	Columns     []string
	Rows        []htmlRow
	Summary     []htmlItem
	GeneratedAt time.Time
}

// htmlItem is a labelled value.
type htmlItem struct {
	Label string
	Value string
}

// htmlRow is one table row; Class marks the status styling.
type htmlRow struct {
	Cells []string
	Class string
}

func (f *HTMLFormatter) prepareAnalysis(a *Analysis) *htmlData {
	data := &htmlData{
		Title: fmt.Sprintf("Dissection of %s", a.Source),
		Info: []htmlItem{
			{"Capture", a.Source},
			{"File Format", a.FileFormat},
			{"Link Type", a.LinkType.String()},
			{"Frames", fmt.Sprintf("%d", len(a.Frames))},
		},
		Columns: []string{"No.", "Time", "Length", "Source", "Destination", "Chain", "Info"},
	}

	if !f.config.OmitFrames {
		for i := range a.Frames {
			fr := &a.Frames[i]
			s := summarizeFrame(fr)
			row := htmlRow{Class: "good"}
			if fr.Chain == nil {
				row.Cells = []string{fmt.Sprintf("%d", fr.Number), "-", "-", "-", "-", "-", s.Info}
				row.Class = "bad"
				data.Rows = append(data.Rows, row)
				continue
			}
			info := s.Info
			switch {
			case fr.Err != nil:
				row.Class = "bad"
			case len(fr.Chain.Problems) > 0:
				info = strings.TrimSpace(info + " " + strings.Join(fr.Chain.Problems, "; "))
				row.Class = "medium"
			}
			row.Cells = []string{
				fmt.Sprintf("%d", fr.Number),
				formatRelative(fr.Chain),
				fmt.Sprintf("%d", fr.Chain.Length),
				orDash(s.Source),
				orDash(s.Destination),
				fr.Chain.Path(),
				orDash(info),
			}
			data.Rows = append(data.Rows, row)
		}
	}

	for _, c := range a.Stats.Sorted() {
		data.Summary = append(data.Summary, htmlItem{c.Name, fmt.Sprintf("%d", c.Count)})
	}
	data.Summary = append(data.Summary,
		htmlItem{"Bytes", fmt.Sprintf("%d", a.Stats.Bytes)},
		htmlItem{"Problems", fmt.Sprintf("%d", a.Stats.Problems)})
	return data
}

func (f *HTMLFormatter) prepareSend(report *Report) *htmlData {
	r := report.Send
	data := &htmlData{
		Title: fmt.Sprintf("%s requests to %s", capitalize(r.Kind), r.Target),
		Info: []htmlItem{
			{"Target", r.Target},
			{"Resolved IP", r.ResolvedIP.String()},
			{"Kind", r.Kind},
			{"Started", r.Timestamp.Format("2006-01-02 15:04:05 MST")},
		},
		Columns: []string{"Seq", "ID", "Bytes", "ICMP Csum", "From", "RTT", "Status"},
	}

	for i := range r.Results {
		res := &r.Results[i]
		row := htmlRow{Cells: []string{
			fmt.Sprintf("%d", res.Seq),
			fmt.Sprintf("0x%04x", res.ID),
			fmt.Sprintf("%d", res.Bytes),
			fmt.Sprintf("0x%04x", res.ICMPChecksum),
		}}
		if res.Replied {
			status := "reply"
			if res.Clock != nil {
				status = fmt.Sprintf("offset %s", res.Clock.Offset())
			}
			row.Cells = append(row.Cells, res.From.String(), fmt.Sprintf("%.2f ms", res.RTTMillis()), status)
			row.Class = rttClass(res.RTTMillis())
		} else {
			row.Cells = append(row.Cells, "-", "-", orDash(res.Error))
			row.Class = "neutral"
			if res.Error != "" {
				row.Class = "bad"
			}
		}
		data.Rows = append(data.Rows, row)
	}

	s := r.Summary
	data.Summary = []htmlItem{
		{"Sent", fmt.Sprintf("%d", s.Sent)},
		{"Received", fmt.Sprintf("%d", s.Received)},
		{"Loss", fmt.Sprintf("%.1f%%", s.LossPercent)},
		{"Avg RTT", formatRTTHTML(s.AvgRTT)},
	}
	return data
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatRTTHTML formats RTT for HTML display.
func formatRTTHTML(rtt float64) string {
	if rtt <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f ms", rtt)
}

// rttClass returns CSS class based on RTT value.
func rttClass(rtt float64) string {
	if rtt <= 0 {
		return "neutral"
	}
	switch {
	case rtt < 50:
		return "good"
	case rtt < 150:
		return "medium"
	default:
		return "bad"
	}
}

// ContentType returns the MIME type for HTML output.
func (f *HTMLFormatter) ContentType() string {
	return "text/html"
}

// FileExtension returns the file extension for HTML output.
func (f *HTMLFormatter) FileExtension() string {
	return "html"
}

// HTML template
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}} - rawhdr</title>
    <style>
        body { font-family: sans-serif; background: #1a1b26; color: #c0caf5; padding: 2rem; }
        h1 { color: #7aa2f7; }
        dl.info { display: grid; grid-template-columns: max-content 1fr; gap: 0.25rem 1rem; }
        dt { color: #565f89; text-transform: uppercase; font-size: 0.8rem; }
        table { border-collapse: collapse; width: 100%; margin: 1.5rem 0; background: #24283b; }
        th, td { padding: 0.4rem 0.8rem; text-align: left; border-bottom: 1px solid #3b4261; font-family: monospace; }
        th { background: #414868; }
        tr.good td:last-child { color: #9ece6a; }
        tr.medium td:last-child { color: #e0af68; }
        tr.bad td:last-child { color: #f7768e; }
        tr.neutral td:last-child { color: #565f89; }
        footer { color: #565f89; font-size: 0.8rem; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <dl class="info">
        {{range .Info}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>
        {{end}}
    </dl>
    {{if .Rows}}
    <table>
        <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
        <tbody>
            {{range .Rows}}<tr class="{{.Class}}">{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
            {{end}}
        </tbody>
    </table>
    {{end}}
    <dl class="info">
        {{range .Summary}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>
        {{end}}
    </dl>
    <footer>Generated by rawhdr on {{formatTime .GeneratedAt}}</footer>
</body>
</html>
`
