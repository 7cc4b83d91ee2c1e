// Package recordingstore manages the on-disk directory of QMDL capture
// files, their NDJSON analysis reports, and the manifest tying the two
// together. The manifest is written crash-safely: a full rewrite to
// "manifest.yaml.new" followed by a rename, never an in-place edit.
package recordingstore

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const manifestFilename = "manifest.yaml"
const manifestTmpFilename = "manifest.yaml.new"

// CurrentManifestVersion is the manifest format this package writes.
// Manifest.Version lets a future incompatible format be rejected cleanly
// instead of mis-parsed, per the "no schema migrations, only graceful
// rejection" non-goal.
const CurrentManifestVersion = "1.0.0"

// ErrNoCurrentEntry is returned by CloseCurrentEntry when no entry is open.
var ErrNoCurrentEntry = fmt.Errorf("recordingstore: no current entry to close")

// ErrNoSuchEntry is returned when an entry name isn't present in the manifest.
var ErrNoSuchEntry = fmt.Errorf("recordingstore: no such entry")

// IncompatibleManifestVersionError is returned when an on-disk manifest
// declares a format version this package can't safely parse.
type IncompatibleManifestVersionError struct {
	Version string
}

func (e *IncompatibleManifestVersionError) Error() string {
	return fmt.Sprintf("recordingstore: manifest version %s is not supported", e.Version)
}

// Manifest is the on-disk record of every capture entry in a store.
type Manifest struct {
	Version string          `yaml:"version"`
	Entries []*ManifestEntry `yaml:"entries"`
}

// ManifestEntry describes one capture: its raw QMDL file, its NDJSON
// analysis report, and bookkeeping about how much of each is valid.
type ManifestEntry struct {
	Name             string     `yaml:"name"`
	StartTime        time.Time  `yaml:"start_time"`
	LastMessageTime  *time.Time `yaml:"last_message_time,omitempty"`
	QmdlSizeBytes    int64      `yaml:"qmdl_size_bytes"`
	AnalysisSizeBytes int64     `yaml:"analysis_size_bytes"`
	RayhunterVersion string     `yaml:"rayhunter_version,omitempty"`
	SystemOS         string     `yaml:"system_os,omitempty"`
	Arch             string     `yaml:"arch,omitempty"`
}

func newManifestEntry(toolVersion string) *ManifestEntry {
	now := time.Now()
	return &ManifestEntry{
		Name:             strconv.FormatInt(now.Unix(), 10),
		StartTime:        now,
		RayhunterVersion: toolVersion,
		SystemOS:         runtime.GOOS,
		Arch:             runtime.GOARCH,
	}
}

// QmdlFilepath returns the absolute path to e's raw capture file under dir.
func (e *ManifestEntry) QmdlFilepath(dir string) string {
	return filepath.Join(dir, e.Name+".qmdl")
}

// AnalysisFilepath returns the absolute path to e's NDJSON report file
// under dir.
func (e *ManifestEntry) AnalysisFilepath(dir string) string {
	return filepath.Join(dir, e.Name+".ndjson")
}

// Store is an open recording store: a directory, its parsed manifest, and
// the index of whichever entry is currently being recorded to, if any.
// Concurrency: all mutating operations require exclusive access; callers
// serialize through a single writer (capturepipeline's capture task).
type Store struct {
	Dir          string
	Manifest     *Manifest
	currentEntry int // -1 means none
}

// Exists reports whether dir contains a manifest file, without validating it.
func Exists(dir string) (bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := os.Stat(filepath.Join(dir, manifestFilename)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Load opens an existing store at dir, parsing and version-checking its
// manifest.
func Load(dir string) (*Store, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	return &Store{Dir: dir, Manifest: manifest, currentEntry: -1}, nil
}

// Create makes a new, empty store at dir, writing a fresh manifest.
func Create(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recordingstore: creating directory: %w", err)
	}
	s := &Store{
		Dir:          dir,
		Manifest:     &Manifest{Version: CurrentManifestVersion},
		currentEntry: -1,
	}
	if err := s.writeManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

// Recover best-effort-rebuilds a manifest from a directory of ".qmdl" files
// whose names are unix timestamps, for when the manifest itself is lost or
// corrupt. Files that don't match the expected name pattern are skipped
// with a warning.
func Recover(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("recordingstore: reading directory: %w", err)
	}
	var recovered []*ManifestEntry
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, ".qmdl") {
			continue
		}
		stem := strings.TrimSuffix(name, ".qmdl")
		startUnix, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			log.Warnf("recordingstore: QMDL file has invalid name %q, skipping", name)
			continue
		}
		info, err := de.Info()
		if err != nil {
			log.Warnf("recordingstore: failed to read QMDL file metadata for %q: %v, skipping", name, err)
			continue
		}
		modTime := info.ModTime()
		recovered = append(recovered, &ManifestEntry{
			Name:            stem,
			StartTime:       time.Unix(startUnix, 0),
			LastMessageTime: &modTime,
			QmdlSizeBytes:   info.Size(),
		})
		log.Infof("recordingstore: successfully recovered QMDL entry %q", name)
	}
	sort.Slice(recovered, func(i, j int) bool { return recovered[i].StartTime.Before(recovered[j].StartTime) })

	s := &Store{Dir: dir, Manifest: &Manifest{Version: CurrentManifestVersion, Entries: recovered}, currentEntry: -1}
	if err := s.writeManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("recordingstore: reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("recordingstore: parsing manifest: %w", err)
	}
	if err := checkManifestVersion(m.Version); err != nil {
		return nil, err
	}
	return &m, nil
}

// checkManifestVersion rejects a manifest from a newer major version than
// this package understands, rather than attempting to migrate it.
func checkManifestVersion(v string) error {
	if v == "" {
		return nil
	}
	got, err := version.NewVersion(v)
	if err != nil {
		return &IncompatibleManifestVersionError{Version: v}
	}
	max, err := version.NewVersion(CurrentManifestVersion)
	if err != nil {
		return err
	}
	if got.Segments()[0] > max.Segments()[0] {
		return &IncompatibleManifestVersionError{Version: v}
	}
	return nil
}

// NewEntry closes any currently-open entry, creates a new one timestamped
// now, and creates its backing QMDL and NDJSON files. Returns the two open
// files ready for writing.
func (s *Store) NewEntry(toolVersion string) (qmdl *os.File, analysis *os.File, err error) {
	if s.currentEntry >= 0 {
		if err := s.CloseCurrentEntry(); err != nil {
			return nil, nil, err
		}
	}
	entry := newManifestEntry(toolVersion)
	// Names are unix seconds; an entry started in the same second as an
	// existing one takes the next free second rather than sharing its files.
	for n := entry.StartTime.Unix() + 1; ; n++ {
		if _, _, taken := s.EntryForName(entry.Name); !taken {
			break
		}
		entry.Name = strconv.FormatInt(n, 10)
	}
	qmdl, err = os.Create(entry.QmdlFilepath(s.Dir))
	if err != nil {
		return nil, nil, fmt.Errorf("recordingstore: creating qmdl file: %w", err)
	}
	analysis, err = os.Create(entry.AnalysisFilepath(s.Dir))
	if err != nil {
		qmdl.Close()
		return nil, nil, fmt.Errorf("recordingstore: creating analysis file: %w", err)
	}
	s.Manifest.Entries = append(s.Manifest.Entries, entry)
	s.currentEntry = len(s.Manifest.Entries) - 1
	if err := s.writeManifest(); err != nil {
		return nil, nil, err
	}
	return qmdl, analysis, nil
}

// OpenEntryQmdl opens entry i's raw capture file for reading.
func (s *Store) OpenEntryQmdl(i int) (*os.File, error) {
	f, err := os.Open(s.Manifest.Entries[i].QmdlFilepath(s.Dir))
	if err != nil {
		return nil, fmt.Errorf("recordingstore: opening qmdl file: %w", err)
	}
	return f, nil
}

// OpenEntryAnalysis opens entry i's NDJSON report file for reading.
func (s *Store) OpenEntryAnalysis(i int) (*os.File, error) {
	f, err := os.Open(s.Manifest.Entries[i].AnalysisFilepath(s.Dir))
	if err != nil {
		return nil, fmt.Errorf("recordingstore: opening analysis file: %w", err)
	}
	return f, nil
}

// ClearAndOpenEntryAnalysis truncates entry i's NDJSON report file and
// returns it open for writing, for a fresh offline replay.
func (s *Store) ClearAndOpenEntryAnalysis(i int) (*os.File, error) {
	f, err := os.OpenFile(s.Manifest.Entries[i].AnalysisFilepath(s.Dir), os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recordingstore: truncating analysis file: %w", err)
	}
	return f, nil
}

// CloseCurrentEntry unsets the current entry index.
func (s *Store) CloseCurrentEntry() error {
	if s.currentEntry < 0 {
		return ErrNoCurrentEntry
	}
	s.currentEntry = -1
	return nil
}

// UpdateEntryQmdlSize records entry i's raw capture byte size and bumps its
// last-message time, then persists the manifest. Callers MUST call this
// only after the corresponding bytes have actually been appended to disk,
// so that size_on_disk(qmdl_file) >= qmdl_size_bytes always holds.
func (s *Store) UpdateEntryQmdlSize(i int, sizeBytes int64) error {
	now := time.Now()
	s.Manifest.Entries[i].QmdlSizeBytes = sizeBytes
	s.Manifest.Entries[i].LastMessageTime = &now
	return s.writeManifest()
}

// UpdateEntryAnalysisSize records entry i's NDJSON report byte size, then
// persists the manifest.
func (s *Store) UpdateEntryAnalysisSize(i int, sizeBytes int64) error {
	s.Manifest.Entries[i].AnalysisSizeBytes = sizeBytes
	return s.writeManifest()
}

// EntryForName returns the index and entry with the given name, if any.
func (s *Store) EntryForName(name string) (int, *ManifestEntry, bool) {
	for i, e := range s.Manifest.Entries {
		if e.Name == name {
			return i, e, true
		}
	}
	return 0, nil, false
}

// CurrentEntry returns the index and entry currently open for recording,
// if any.
func (s *Store) CurrentEntry() (int, *ManifestEntry, bool) {
	if s.currentEntry < 0 {
		return 0, nil, false
	}
	return s.currentEntry, s.Manifest.Entries[s.currentEntry], true
}

// IsCurrentEntry reports whether name is the entry currently open for
// recording.
func (s *Store) IsCurrentEntry(name string) bool {
	i, e, ok := s.CurrentEntry()
	return ok && e.Name == name && i == s.currentEntry
}

// DeleteEntry removes entry name's manifest record and backing files.
func (s *Store) DeleteEntry(name string) error {
	idx, entry, ok := s.EntryForName(name)
	if !ok {
		return ErrNoSuchEntry
	}
	switch {
	case s.currentEntry == idx:
		if err := s.CloseCurrentEntry(); err != nil {
			return err
		}
	case s.currentEntry > idx:
		s.currentEntry--
	}
	s.Manifest.Entries = append(s.Manifest.Entries[:idx], s.Manifest.Entries[idx+1:]...)
	if err := s.writeManifest(); err != nil {
		return err
	}
	removeIfExists(entry.QmdlFilepath(s.Dir))
	removeIfExists(entry.AnalysisFilepath(s.Dir))
	return nil
}

// DeleteAll removes every entry and its backing files.
func (s *Store) DeleteAll() error {
	if s.currentEntry >= 0 {
		if err := s.CloseCurrentEntry(); err != nil {
			return err
		}
	}
	for _, e := range s.Manifest.Entries {
		removeIfExists(e.QmdlFilepath(s.Dir))
		removeIfExists(e.AnalysisFilepath(s.Dir))
	}
	s.Manifest.Entries = nil
	return s.writeManifest()
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("recordingstore: failed to remove %s: %v", path, err)
	}
}

// writeManifest serializes the manifest to a temp file and renames it into
// place, so a crash mid-write never leaves a truncated manifest.yaml: the
// rename is atomic, the old file stays valid until it succeeds.
func (s *Store) writeManifest() error {
	if s.Manifest.Version == "" {
		s.Manifest.Version = CurrentManifestVersion
	}
	data, err := yaml.Marshal(s.Manifest)
	if err != nil {
		return fmt.Errorf("recordingstore: serializing manifest: %w", err)
	}
	tmpPath := filepath.Join(s.Dir, manifestTmpFilename)
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("recordingstore: writing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.Dir, manifestFilename)); err != nil {
		return fmt.Errorf("recordingstore: renaming manifest into place: %w", err)
	}
	return nil
}
