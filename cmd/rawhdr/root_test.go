package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/rawhdr/internal/capture"
	"github.com/KilimcininKorOglu/rawhdr/internal/config"
	"github.com/KilimcininKorOglu/rawhdr/internal/dissect"
	"github.com/KilimcininKorOglu/rawhdr/internal/logging"
	"github.com/KilimcininKorOglu/rawhdr/internal/output"
	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
	"github.com/KilimcininKorOglu/rawhdr/internal/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSendConfigPing(t *testing.T) {
	cfg = config.DefaultConfig()
	require.NoError(t, pingCmd.ParseFlags([]string{"--count", "2", "--ttl", "9", "--raw", "--source", "10.0.0.1"}))

	sc, headerIncluded, err := buildSendConfig(pingCmd, send.KindEcho)
	require.NoError(t, err)

	assert.True(t, headerIncluded)
	assert.Equal(t, send.KindEcho, sc.Kind)
	assert.Equal(t, 2, sc.Count)
	assert.Equal(t, time.Second, sc.Interval)
	assert.Equal(t, 3*time.Second, sc.Timeout)
	assert.Equal(t, uint8(9), sc.TTL)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), sc.Source)
	assert.True(t, sc.Wait)
}

func TestTransportConfig(t *testing.T) {
	src := netip.MustParseAddr("10.0.0.1")
	sc := &send.Config{TTL: 9, Timeout: 2 * time.Second, Source: src}

	raw := transportConfig(sc, true)
	assert.True(t, raw.HeaderIncluded)
	assert.False(t, raw.ListenAddr.IsValid(), "header-included socket binds the unspecified address")
	assert.Equal(t, 9, raw.TTL)
	assert.Equal(t, 2*time.Second, raw.Timeout)

	kernel := transportConfig(sc, false)
	assert.False(t, kernel.HeaderIncluded)
	assert.Equal(t, src, kernel.ListenAddr)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamLineLogsWriteErrors(t *testing.T) {
	var logs bytes.Buffer
	logging.SetOutput(&logs)
	level := logging.GetLevel()
	logging.SetLevel(logging.WarnLevel)
	defer func() {
		logging.SetOutput(os.Stderr)
		logging.SetLevel(level)
	}()

	w := output.NewWriterWithFormatter(output.NewFormatter(output.FormatText, output.Config{}), failingWriter{})
	streamLine(w, "seq 1\n")
	assert.Contains(t, logs.String(), "write failed")
	assert.Contains(t, logs.String(), "broken pipe")
}

func TestBuildSendConfigTimestamp(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Send.Count = 10
	require.NoError(t, timestampCmd.ParseFlags([]string{"--no-wait"}))

	sc, headerIncluded, err := buildSendConfig(timestampCmd, send.KindTimestamp)
	require.NoError(t, err)

	assert.False(t, headerIncluded)
	assert.Equal(t, send.KindTimestamp, sc.Kind)
	assert.Equal(t, 1, sc.Count, "timestamp sends a single request")
	assert.Equal(t, uint8(64), sc.TTL)
	assert.False(t, sc.Source.IsValid())
	assert.False(t, sc.Wait)
}

func TestEncodeCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rawhdr.yaml")
	require.NoError(t, config.DefaultConfig().SaveTo(cfgPath))
	out := filepath.Join(dir, "echo.pcap")

	rootCmd.SetArgs([]string{"--config", cfgPath, "encode", "--dst", "10.0.0.2", "--ttl", "64", "--seq", "7", "--identifier", "4660", "--pcap", out})
	require.NoError(t, rootCmd.Execute())

	r, err := capture.Open(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, dissect.LinkTypeEthernet, r.LinkType())

	frames, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	ch, err := dissect.Dissect(frames[0], dissect.Options{VerifyChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, dissect.KindEchoRequest, ch.Final().Kind)
	assert.Equal(t, uint16(7), ch.ICMP.Seq)
	assert.Equal(t, uint16(4660), ch.ICMP.ID)
	assert.Empty(t, ch.Problems)

	rootCmd.SetArgs([]string{"--config", cfgPath, "encode", "--ttl", "300"})
	assert.Error(t, rootCmd.Execute())
}

func TestEncodeCommandInvalidHeader(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rawhdr.yaml")
	require.NoError(t, config.DefaultConfig().SaveTo(cfgPath))

	rootCmd.SetArgs([]string{"--config", cfgPath, "encode", "--dst", "2001:db8::1", "--ttl", "64", "--pcap", ""})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, packet.ErrInvalidInput)
	assert.Contains(t, err.Error(), "invalid header flags")
}

func TestAnalyzeCommandOutFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rawhdr.yaml")
	require.NoError(t, config.DefaultConfig().SaveTo(cfgPath))
	capPath := filepath.Join(dir, "echo.pcap")
	reportPath := filepath.Join(dir, "report.json")

	rootCmd.SetArgs([]string{"--config", cfgPath, "encode", "--dst", "10.0.0.2", "--seq", "3", "--pcap", capPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"--config", cfgPath, "analyze", "--summary=false", "--out-file", reportPath, capPath})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report output.JSONAnalysis
	require.NoError(t, json.Unmarshal(data, &report), "format follows the .json extension")
	require.Len(t, report.Frames, 1)
	assert.Equal(t, "Echo Request", report.Frames[0].Final)
	require.NotNil(t, report.Frames[0].ICMP)
	assert.Equal(t, uint16(3), report.Frames[0].ICMP.Seq)
}

func TestFileFormat(t *testing.T) {
	assert.Equal(t, output.FormatCSV, fileFormat("out.csv", output.FormatText))
	assert.Equal(t, output.FormatHTML, fileFormat("out.HTML", output.FormatText))
	assert.Equal(t, output.FormatTable, fileFormat("out.txt", output.FormatTable))
	assert.Equal(t, output.FormatText, fileFormat("report", output.FormatText))
}
