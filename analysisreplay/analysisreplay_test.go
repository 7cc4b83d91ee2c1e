package analysisreplay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/analyzers/imsiexposure"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

func identityRequestIMEI() diag.Message {
	msg := []byte{0x07, 0x55, 0x02} // EPS mobility mgmt, Identity Request, type IMEI
	return diag.LogMessage{
		OuterLength: uint16(len(msg) + 16),
		InnerLength: uint16(len(msg) + 16),
		LogType:     0xb0ec, // NAS EMM in
		Body: diag.Nas4GMessage{
			LogType: 0xb0ec,
			Msg:     msg,
		},
	}
}

func TestReaderSplitsOnTerminator(t *testing.T) {
	msg := identityRequestIMEI()
	frame := diag.EncapsulateMessage(msg)

	r := NewReader(bytes.NewReader(frame.Data), int64(len(frame.Data)))
	container, err := r.Next()
	require.NoError(t, err)
	require.Len(t, container.Messages, 1)
	assert.Equal(t, frame.Data, container.Messages[0].Data)
}

func TestReplayBoundsReadToManifestSize(t *testing.T) {
	dir := t.TempDir()
	store, err := recordingstore.Create(dir)
	require.NoError(t, err)

	qmdl, analysis, err := store.NewEntry("")
	require.NoError(t, err)
	entryName := mustCurrentEntryName(t, store)

	frame := diag.EncapsulateMessage(identityRequestIMEI())
	_, err = qmdl.Write(frame.Data)
	require.NoError(t, err)
	// Extra bytes appended after the manifest size was recorded simulate a
	// still-live recording; replay must not read past the recorded size.
	_, err = qmdl.Write([]byte{0xff, 0xff, 0xff})
	require.NoError(t, err)
	qmdl.Close()
	analysis.Close()

	require.NoError(t, store.UpdateEntryQmdlSize(0, int64(len(frame.Data))))
	require.NoError(t, store.CloseCurrentEntry())

	var mu sync.RWMutex
	h := analyzerharness.New(prometheus.NewRegistry(), rrcie.NoopDecoder{}, "test", imsiexposure.Analyzer{})

	require.NoError(t, Replay(&mu, store, h, entryName))

	idx, entry, ok := store.EntryForName(entryName)
	require.True(t, ok)
	reportFile, err := store.OpenEntryAnalysis(idx)
	require.NoError(t, err)
	defer reportFile.Close()

	scanner := bufio.NewScanner(reportFile)
	require.True(t, scanner.Scan(), "expected metadata header line")
	var md analyzerharness.Metadata
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &md))
	require.Len(t, md.Analyzers, 1)
	assert.Equal(t, "IMSI Exposure Diagnostic", md.Analyzers[0].Name)

	require.True(t, scanner.Scan(), "expected at least one analysis row")
	var row analyzerharness.AnalysisRow
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
	require.Len(t, row.Events, 1)
	require.NotNil(t, row.Events[0])
	assert.Contains(t, row.Events[0].Message, "EMM Identity Request (IMEI)")

	assert.Greater(t, entry.AnalysisSizeBytes, int64(0))
}

func mustCurrentEntryName(t *testing.T, s *recordingstore.Store) string {
	t.Helper()
	_, entry, ok := s.CurrentEntry()
	require.True(t, ok)
	return entry.Name
}
