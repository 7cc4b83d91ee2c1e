package capturepipeline

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/analyzers/imsiexposure"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/diagdevice"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

func TestAnalysisStatusLifecycle(t *testing.T) {
	s := &analysisStatus{}
	s.enqueue("a")
	s.enqueue("b")

	got := s.snapshot()
	assert.Equal(t, []string{"a", "b"}, got.Queued)
	assert.Nil(t, got.Running)

	name, ok := s.popQueued()
	require.True(t, ok)
	assert.Equal(t, "a", name)

	got = s.snapshot()
	assert.Equal(t, []string{"b"}, got.Queued)
	require.NotNil(t, got.Running)
	assert.Equal(t, "a", *got.Running)

	s.finish("a")
	got = s.snapshot()
	assert.Nil(t, got.Running)
	assert.Equal(t, []string{"a"}, got.Finished)
}

func TestAnalysisStatusFinishWithoutQueueing(t *testing.T) {
	s := &analysisStatus{}
	s.finish("from-stop-recording")
	got := s.snapshot()
	assert.Equal(t, []string{"from-stop-recording"}, got.Finished)
	assert.Nil(t, got.Running)
}

// identityRequestContainer builds a raw MessagesContainer with a single
// NAS EMM Identity Request (IMEI), the same message shape exercised in
// analyzerharness and imsiexposure's own tests.
func identityRequestContainer(t *testing.T) *diag.MessagesContainer {
	t.Helper()
	msg := []byte{0x07, 0x55, 0x02}
	logMsg := diag.LogMessage{
		OuterLength: uint16(len(msg) + 16),
		InnerLength: uint16(len(msg) + 16),
		LogType:     0xb0ec,
		Body:        diag.Nas4GMessage{LogType: 0xb0ec, Msg: msg},
	}
	return &diag.MessagesContainer{
		DataType: diag.DataTypeUserSpace,
		Messages: []diag.HdlcEncapsulatedMessage{diag.EncapsulateMessage(logMsg)},
	}
}

func TestAppendAndAnalyzeWritesRowsAndUpdatesManifest(t *testing.T) {
	dir := t.TempDir()
	store, err := recordingstore.Create(dir)
	require.NoError(t, err)
	var storeMu sync.RWMutex

	h := analyzerharness.New(prometheus.NewRegistry(), rrcie.NoopDecoder{}, "test", imsiexposure.Analyzer{})
	p := &Pipeline{store: store, storeMu: &storeMu, harness: h, status: &analysisStatus{}, UIUpdates: make(chan DisplayState, 1)}

	qmdl, analysis, err := store.NewEntry("test")
	require.NoError(t, err)
	defer qmdl.Close()
	defer analysis.Close()
	idx, _, ok := store.CurrentEntry()
	require.True(t, ok)

	entry := &openEntry{
		index:    idx,
		qmdl:     &recordingEntryWriter{write: qmdl.Write},
		analysis: &recordingEntryWriter{write: analysis.Write},
	}
	require.NoError(t, entry.writeMetadataHeader(h))

	container := identityRequestContainer(t)
	var packetNum uint64
	require.NoError(t, p.appendAndAnalyze(entry, container, &packetNum))

	_, got, ok := store.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, entry.qmdl.total, got.QmdlSizeBytes)
	assert.Greater(t, got.AnalysisSizeBytes, int64(0))

	select {
	case s := <-p.UIUpdates:
		t.Fatalf("unexpected UI update for an informational-only event: %v", s)
	default:
	}
}

// fakeDevice is a hand-rolled Device double. Its first Read blocks on ready
// so the test can deterministically send a control message before any
// container reaches the capture loop.
type fakeDevice struct {
	reads [][]byte
	idx   int
	ready chan struct{}
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	if f.ready != nil {
		<-f.ready
		f.ready = nil
	}
	if f.idx >= len(f.reads) {
		return 0, io.EOF
	}
	data := f.reads[f.idx]
	f.idx++
	return copy(p, data), nil
}

func (f *fakeDevice) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeDevice) Close() error                { return nil }

func marshalContainer(t *testing.T, c *diag.MessagesContainer) []byte {
	t.Helper()
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, c.DataType.Tag)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(c.Messages)))
	for _, m := range c.Messages {
		out = binary.LittleEndian.AppendUint32(out, m.Len)
		out = append(out, m.Data...)
	}
	return out
}

func TestRunCapturesOneContainerThenStops(t *testing.T) {
	dir := t.TempDir()
	store, err := recordingstore.Create(dir)
	require.NoError(t, err)
	var storeMu sync.RWMutex

	container := identityRequestContainer(t)
	raw := marshalContainer(t, container)

	dev := &fakeDevice{reads: [][]byte{raw}, ready: make(chan struct{})}
	driver := diagdevice.NewDriver(dev, false)
	h := analyzerharness.New(prometheus.NewRegistry(), rrcie.NoopDecoder{}, "test", imsiexposure.Analyzer{})

	p := New(driver, store, &storeMu, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	p.DeviceCtrl <- StartRecording
	time.Sleep(20 * time.Millisecond)
	close(dev.ready)

	select {
	case err := <-runErr:
		require.Error(t, err, "pipeline should stop once the fake device runs dry")
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not exit after the fake device ran dry")
	}

	require.Len(t, store.Manifest.Entries, 1)
	entry := store.Manifest.Entries[0]
	assert.Greater(t, entry.QmdlSizeBytes, int64(0))
	assert.Greater(t, entry.AnalysisSizeBytes, int64(0))

	idx := 0
	report, err := store.OpenEntryAnalysis(idx)
	require.NoError(t, err)
	defer report.Close()

	scanner := bufio.NewScanner(report)
	require.True(t, scanner.Scan())
	var md analyzerharness.Metadata
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &md))
	require.Len(t, md.Analyzers, 1)

	require.True(t, scanner.Scan())
	var row analyzerharness.AnalysisRow
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
	require.Len(t, row.Events, 1)
	require.NotNil(t, row.Events[0])
	assert.Contains(t, row.Events[0].Message, "EMM Identity Request (IMEI)")
}
