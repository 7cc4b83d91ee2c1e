// Package capturepipeline wires the diag device to the recording store and
// analyzer harness: a capture task that appends and analyzes in real time,
// an analysis task that replays finished recordings on demand, and a
// shutdown task that tears both down cleanly. Modeled on
// responder/server/server.go's goroutine-per-responsibility, channel-driven
// shape.
package capturepipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/EFForg/rayhunter-sub000/analysisreplay"
	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/diagdevice"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
)

// DeviceCtrlMessage is sent on the capture task's control channel.
type DeviceCtrlMessage int

const (
	StartRecording DeviceCtrlMessage = iota
	StopRecording
	Exit
)

// AnalysisCtrlMessage is sent on the analysis task's control channel.
type AnalysisCtrlMessage struct {
	// Kind distinguishes the two message shapes; Name is only meaningful
	// for KindRecordingFinished.
	Kind AnalysisCtrlKind
	Name string
}

type AnalysisCtrlKind int

const (
	NewFilesQueued AnalysisCtrlKind = iota
	RecordingFinished
	AnalysisExit
)

// DisplayState is the UI channel's payload: three variants, matching the
// physical-display driver this repo doesn't implement (see UIUpdates).
type DisplayState int

const (
	Recording DisplayState = iota
	Paused
	WarningDetected
)

// Status is the pipeline's read-only view of the analysis replay queue, safe
// to read concurrently with the writers below.
type Status struct {
	Queued   []string
	Running  *string
	Finished []string
}

// analysisStatus is the mutable backing store for Status, guarded by its own
// lock independent of the recording store's lock, per the two-lock
// discipline the capture and analysis tasks observe.
type analysisStatus struct {
	mu       sync.RWMutex
	queued   []string
	running  *string
	finished []string
}

func (s *analysisStatus) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Queued:   append([]string(nil), s.queued...),
		Running:  s.running,
		Finished: append([]string(nil), s.finished...),
	}
}

func (s *analysisStatus) enqueue(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, name)
}

func (s *analysisStatus) popQueued() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queued) == 0 {
		return "", false
	}
	name := s.queued[0]
	s.queued = s.queued[1:]
	s.running = &name
	return name, true
}

func (s *analysisStatus) finish(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil && *s.running == name {
		s.running = nil
	}
	s.finished = append(s.finished, name)
}

// Pipeline supervises the three long-lived tasks. Callers start it with Run
// and control it by sending on DeviceCtrl and AnalysisCtrl; the pipeline
// sends display state changes on UIUpdates for the caller to read.
type Pipeline struct {
	store     *recordingstore.Store
	storeMu   *sync.RWMutex
	driver    *diagdevice.Driver
	harness   *analyzerharness.Harness

	DeviceCtrl   chan DeviceCtrlMessage
	AnalysisCtrl chan AnalysisCtrlMessage
	UIUpdates    chan DisplayState

	status *analysisStatus
}

// New builds a Pipeline around an already-initialized device, store, and
// harness. storeMu guards store; capture (append) and shutdown (close) take
// it for writing, analysis (open) takes it for reading, per spec's
// readers-writer discipline.
func New(driver *diagdevice.Driver, store *recordingstore.Store, storeMu *sync.RWMutex, harness *analyzerharness.Harness) *Pipeline {
	return &Pipeline{
		store:        store,
		storeMu:      storeMu,
		driver:       driver,
		harness:      harness,
		DeviceCtrl:   make(chan DeviceCtrlMessage, 1),
		AnalysisCtrl: make(chan AnalysisCtrlMessage, 5),
		UIUpdates:    make(chan DisplayState, 1),
		status:       &analysisStatus{},
	}
}

// Status returns the current analysis replay queue view without blocking
// any writer.
func (p *Pipeline) Status() Status { return p.status.snapshot() }

// Run starts the capture and analysis tasks and blocks until ctx is
// cancelled or either task fails; it then closes the current recording
// entry, matching the shutdown task's "close on exit" obligation.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runCaptureTask(gctx) })
	g.Go(func() error { return p.runAnalysisTask(gctx) })

	err := g.Wait()

	p.storeMu.Lock()
	if _, _, ok := p.store.CurrentEntry(); ok {
		if cerr := p.store.CloseCurrentEntry(); cerr != nil {
			log.Warnf("capturepipeline: failed to close current entry on shutdown: %v", cerr)
		}
	}
	p.storeMu.Unlock()

	return err
}

type openEntry struct {
	index    int
	qmdl     *recordingEntryWriter
	analysis *recordingEntryWriter
}

// recordingEntryWriter tracks a file's write cursor the way QmdlWriter
// tracks total_written, so the manifest size update always reflects bytes
// actually on disk.
type recordingEntryWriter struct {
	write func([]byte) (int, error)
	total int64
}

func (w *recordingEntryWriter) Append(b []byte) error {
	n, err := w.write(b)
	w.total += int64(n)
	if err != nil {
		return err
	}
	return nil
}

// writeMetadataHeader writes the report file's mandatory first line:
// analyzer names, descriptions, and versions, plus the running tool's
// version and platform.
func (e *openEntry) writeMetadataHeader(h *analyzerharness.Harness) error {
	line, err := json.Marshal(h.Metadata())
	if err != nil {
		return fmt.Errorf("capturepipeline: marshaling analyzer metadata: %w", err)
	}
	line = append(line, '\n')
	return e.analysis.Append(line)
}

func (p *Pipeline) runCaptureTask(ctx context.Context) error {
	var current *openEntry

	closeCurrent := func() {
		if current == nil {
			return
		}
		p.storeMu.Lock()
		if err := p.store.CloseCurrentEntry(); err != nil {
			log.Warnf("capturepipeline: closing current entry: %v", err)
		}
		p.storeMu.Unlock()
		current = nil
	}

	startNew := func() error {
		p.storeMu.Lock()
		qmdl, analysis, err := p.store.NewEntry(p.harness.Metadata().Runtime.ToolVersion)
		if err != nil {
			p.storeMu.Unlock()
			return fmt.Errorf("capturepipeline: creating new entry: %w", err)
		}
		idx, _, _ := p.store.CurrentEntry()
		p.storeMu.Unlock()

		current = &openEntry{
			index:    idx,
			qmdl:     &recordingEntryWriter{write: qmdl.Write},
			analysis: &recordingEntryWriter{write: analysis.Write},
		}
		return current.writeMetadataHeader(p.harness)
	}

	containers := make(chan *diag.MessagesContainer)
	readErrs := make(chan error, 1)
	go func() {
		for {
			container, err := p.driver.NextContainer()
			if err != nil {
				readErrs <- err
				close(containers)
				return
			}
			select {
			case containers <- container:
			case <-ctx.Done():
				readErrs <- ctx.Err()
				close(containers)
				return
			}
		}
	}()

	var packetNum uint64
	for {
		select {
		case <-ctx.Done():
			closeCurrent()
			return nil
		case msg, ok := <-p.DeviceCtrl:
			if !ok {
				closeCurrent()
				return nil
			}
			switch msg {
			case StartRecording:
				closeCurrent()
				if err := startNew(); err != nil {
					log.Errorf("capturepipeline: %v", err)
					continue
				}
				p.sendUIUpdate(Recording)
			case StopRecording:
				if current != nil {
					p.enqueueFinished(current.index)
				}
				closeCurrent()
				p.sendUIUpdate(Paused)
			case Exit:
				closeCurrent()
				return nil
			}
		case container, ok := <-containers:
			if !ok {
				return <-readErrs
			}
			if container.DataType != diag.DataTypeUserSpace {
				continue
			}
			if current == nil {
				continue
			}
			if err := p.appendAndAnalyze(current, container, &packetNum); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) appendAndAnalyze(entry *openEntry, container *diag.MessagesContainer, packetNum *uint64) error {
	for _, m := range container.Messages {
		if err := entry.qmdl.Append(m.Data); err != nil {
			return fmt.Errorf("capturepipeline: writing qmdl: %w", err)
		}
	}

	p.storeMu.Lock()
	if err := p.store.UpdateEntryQmdlSize(entry.index, entry.qmdl.total); err != nil {
		p.storeMu.Unlock()
		return fmt.Errorf("capturepipeline: updating qmdl size: %w", err)
	}
	p.storeMu.Unlock()

	rows := p.harness.ProcessContainer(container, *packetNum)
	*packetNum += uint64(len(rows))

	warned := false
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("capturepipeline: marshaling analysis row: %w", err)
		}
		line = append(line, '\n')
		if err := entry.analysis.Append(line); err != nil {
			return fmt.Errorf("capturepipeline: writing analysis row: %w", err)
		}
		if row.MaxEventType() > analyzerharness.Informational {
			warned = true
		}
	}
	if len(rows) > 0 {
		p.storeMu.Lock()
		if err := p.store.UpdateEntryAnalysisSize(entry.index, entry.analysis.total); err != nil {
			p.storeMu.Unlock()
			return fmt.Errorf("capturepipeline: updating analysis size: %w", err)
		}
		p.storeMu.Unlock()
	}
	if warned {
		p.sendUIUpdate(WarningDetected)
	}
	return nil
}

func (p *Pipeline) enqueueFinished(index int) {
	p.storeMu.RLock()
	entry := p.store.Manifest.Entries[index]
	name := entry.Name
	p.storeMu.RUnlock()
	select {
	case p.AnalysisCtrl <- AnalysisCtrlMessage{Kind: RecordingFinished, Name: name}:
	default:
		log.Warn("capturepipeline: analysis control channel full, dropping RecordingFinished")
	}
}

func (p *Pipeline) sendUIUpdate(s DisplayState) {
	select {
	case p.UIUpdates <- s:
	default:
		log.Debug("capturepipeline: UI updates channel full, dropping update")
	}
}

// runAnalysisTask processes the offline replay queue: at most one replay
// runs concurrently, new requests enqueue behind it.
func (p *Pipeline) runAnalysisTask(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-p.AnalysisCtrl:
			if !ok {
				return nil
			}
			switch msg.Kind {
			case RecordingFinished:
				p.status.finish(msg.Name)
			case NewFilesQueued:
				p.drainQueue(ctx)
			case AnalysisExit:
				return nil
			}
		}
	}
}

func (p *Pipeline) drainQueue(ctx context.Context) {
	for {
		name, ok := p.status.popQueued()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := analysisreplay.Replay(p.storeMu, p.store, p.harness, name); err != nil {
			log.Errorf("capturepipeline: replaying %q: %v", name, err)
		}
		p.status.finish(name)
	}
}

// Enqueue marks name for offline replay and wakes the analysis task.
func (p *Pipeline) Enqueue(name string) {
	p.status.enqueue(name)
	select {
	case p.AnalysisCtrl <- AnalysisCtrlMessage{Kind: NewFilesQueued}:
	default:
	}
}
