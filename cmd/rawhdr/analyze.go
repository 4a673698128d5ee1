package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/capture"
	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/logging"
	"github.com/KilimcininKorOglu/rawhdr/internal/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	noVerify    bool
	workers     int
	summaryOnly bool
	outFile     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <capture>",
	Short: "Dissect every frame of a pcap or pcapng file",
	Long: `Dissect every frame of a capture file and classify it by protocol
layer, e.g. Ethernet → IPv4 → ICMP → Echo Request.

Text output streams one line per frame. The other formats dissect frames
concurrently and render the whole capture at once.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip IPv4 and ICMP checksum verification")
	analyzeCmd.Flags().IntVar(&workers, "workers", 0, "Dissection workers (0 = one per CPU)")
	analyzeCmd.Flags().BoolVarP(&summaryOnly, "summary", "s", false, "Print only the classification summary")
	analyzeCmd.Flags().StringVar(&outFile, "out-file", "", "Save the report to this file instead of printing it")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	opts := dissect.Options{VerifyChecksums: cfg.Defaults.VerifyChecksums}
	if cmd.Flags().Changed("no-verify") {
		opts.VerifyChecksums = !noVerify
	}
	if !cmd.Flags().Changed("workers") {
		workers = cfg.Defaults.Workers
	}

	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	writer, format, err := newWriter()
	if err != nil {
		return err
	}
	logging.WithFields(logrus.Fields{
		"file":      args[0],
		"format":    r.Format(),
		"link_type": r.LinkType(),
	}).Debug("opened capture")

	if outFile != "" && !cmd.Flags().Changed("output") {
		format = fileFormat(outFile, format)
	}

	if format == output.FormatText && outFile == "" {
		return streamAnalyze(ctx, r, writer, dissect.NewSession(opts), args[0])
	}

	start := time.Now()
	frames, err := r.ReadAll(ctx)
	if err != nil {
		return err
	}

	analyzer := dissect.NewAnalyzer(dissect.NewSession(opts), workers)
	results, err := analyzer.Analyze(ctx, frames)
	if err != nil {
		return err
	}
	logFrameErrors(results)
	if base, ok := analyzer.Session().Base(); ok {
		logging.WithFields(logrus.Fields{
			"frames":  len(results),
			"verify":  analyzer.Session().Options().VerifyChecksums,
			"workers": workers,
			"base":    base,
		}).Debug("analyzed capture")
	}

	report := output.NewAnalysisReport(args[0], r.Format().String(), r.LinkType(), results)
	report.Analysis.Elapsed = time.Since(start)

	if outFile != "" {
		formatter := output.NewFormatter(format, output.Config{OmitFrames: summaryOnly})
		if err := output.WriteToFile(report, outFile, formatter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "report saved to %s\n", outFile)
		return nil
	}

	if summaryOnly {
		writer = output.NewWriterWithFormatter(
			output.NewFormatter(format, output.Config{Colors: !noColor && writer.IsTTY(), OmitFrames: true}),
			cmd.OutOrStdout())
	}
	return writer.Write(report)
}

// streamAnalyze prints each frame as it is dissected, then the summary.
func streamAnalyze(ctx context.Context, r *capture.Reader, w *output.Writer, s *dissect.Session, source string) error {
	text := output.NewTextFormatter(output.Config{Colors: !noColor && w.IsTTY()})
	stats := dissect.NewStats()

	if err := w.WriteString(fmt.Sprintf("%s: %s, link type %s\n\n", source, r.Format(), r.LinkType())); err != nil {
		return err
	}

	n := 0
	err := r.Each(ctx, func(f dissect.Frame) error {
		n++
		ch, err := s.Dissect(f)
		stats.Add(ch, err)
		if err != nil {
			logging.WithFields(logrus.Fields{"frame": n}).Debug(err)
		}
		if summaryOnly {
			return nil
		}
		return w.WriteString(text.FormatFrame(&output.Frame{Number: n, Chain: ch, Err: err}))
	})
	if err != nil {
		return err
	}

	if !summaryOnly {
		if err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.WriteString(text.FormatStats(stats))
}

// logFrameErrors records per-frame dissection errors at debug level.
func logFrameErrors(results []dissect.Result) {
	for _, r := range results {
		if r.Err != nil {
			logging.WithFields(logrus.Fields{"frame": r.Index + 1}).Debug(r.Err)
		}
	}
}

// fileFormat picks the report format from the file extension, falling
// back to def for extensions that name no format.
func fileFormat(path string, def output.Format) output.Format {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	f, err := output.ParseFormat(ext)
	if ext == "" || err != nil {
		return def
	}
	return f
}
