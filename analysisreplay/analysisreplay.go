// Package analysisreplay re-runs the analyzer harness over an existing
// recording's raw capture file, the offline equivalent of the capture
// task's decoding half. Grounded in lib/src/qmdl.rs's QmdlReader: since a
// QMDL file is just concatenated HDLC frames with no container boundaries
// preserved, replay treats every frame as its own one-message container.
package analysisreplay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
)

// Reader streams MessagesContainers out of a raw capture file, bounded by a
// fixed byte count rather than the file's actual size, so a still-live
// recording can be replayed safely without racing the capture task's
// appends.
type Reader struct {
	r         *bufio.Reader
	bytesRead int64
	maxBytes  int64
}

// NewReader wraps r, reading at most maxBytes bytes total.
func NewReader(r io.Reader, maxBytes int64) *Reader {
	return &Reader{r: bufio.NewReader(io.LimitReader(r, maxBytes)), maxBytes: maxBytes}
}

// Next returns the next single-message container, or io.EOF once maxBytes
// has been reached or the underlying reader is exhausted.
func (qr *Reader) Next() (*diag.MessagesContainer, error) {
	if qr.bytesRead >= qr.maxBytes {
		return nil, io.EOF
	}
	buf, err := qr.r.ReadBytes(diag.MessageTerminator)
	if len(buf) == 0 && err != nil {
		return nil, err
	}
	qr.bytesRead += int64(len(buf))
	container := &diag.MessagesContainer{
		DataType: diag.DataTypeUserSpace,
		Messages: []diag.HdlcEncapsulatedMessage{{Len: uint32(len(buf)), Data: buf}},
	}
	if err != nil && err != io.EOF {
		return container, err
	}
	return container, nil
}

// Replay re-decodes entry name's raw capture (bounded by its manifest-
// recorded size), truncates its report file, and rewrites it from scratch.
// It is restartable: the only side effect is the report file's contents.
func Replay(storeMu *sync.RWMutex, store *recordingstore.Store, harness *analyzerharness.Harness, name string) error {
	storeMu.RLock()
	index, entry, ok := store.EntryForName(name)
	if !ok {
		storeMu.RUnlock()
		return fmt.Errorf("analysisreplay: no such entry %q", name)
	}
	maxBytes := entry.QmdlSizeBytes
	storeMu.RUnlock()

	qmdl, err := store.OpenEntryQmdl(index)
	if err != nil {
		return fmt.Errorf("analysisreplay: opening qmdl file: %w", err)
	}
	defer qmdl.Close()

	report, err := store.ClearAndOpenEntryAnalysis(index)
	if err != nil {
		return fmt.Errorf("analysisreplay: truncating analysis file: %w", err)
	}
	defer report.Close()

	reader := NewReader(qmdl, maxBytes)
	var packetNum uint64
	var totalWritten int64

	header, err := json.Marshal(harness.Metadata())
	if err != nil {
		return fmt.Errorf("analysisreplay: marshaling analyzer metadata: %w", err)
	}
	header = append(header, '\n')
	n, err := report.Write(header)
	totalWritten += int64(n)
	if err != nil {
		return fmt.Errorf("analysisreplay: writing analyzer metadata: %w", err)
	}

	for {
		container, err := reader.Next()
		if err != nil && container == nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("analysisreplay: reading container: %w", err)
		}

		rows := harness.ProcessContainer(container, packetNum)
		packetNum += uint64(len(rows))
		for _, row := range rows {
			line, merr := json.Marshal(row)
			if merr != nil {
				return fmt.Errorf("analysisreplay: marshaling analysis row: %w", merr)
			}
			line = append(line, '\n')
			n, werr := report.Write(line)
			totalWritten += int64(n)
			if werr != nil {
				return fmt.Errorf("analysisreplay: writing analysis row: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
	}

	storeMu.Lock()
	defer storeMu.Unlock()
	if err := store.UpdateEntryAnalysisSize(index, totalWritten); err != nil {
		return fmt.Errorf("analysisreplay: updating analysis size: %w", err)
	}
	return nil
}
