// Package store implements the append-only per-case artifact stores: a
// line-oriented event store, a line-oriented registry store and the
// parallel flattened text corpora consumed by scoring and the semantic
// index.
//
// Appends are serialized through a single mutex. Decoding may run in
// parallel across files, but there is exactly one writer per store.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

const (
	eventsFile       = "events.jsonl"
	eventsTextFile   = "events.txt"
	registryFile     = "registry.jsonl"
	registryTextFile = "registry.txt"
	findingsFile     = "triage_findings.json"
	topNFile         = "triage_topn.json"
	playbookFile     = "playbook.md"
)

// Store is the per-case artifact store rooted at one case directory.
type Store struct {
	dir string
	log *logging.Logger

	mu sync.Mutex
	// seen tracks record ids per source file so duplicates within one file
	// are detected across append batches and reopens.
	seen map[string]map[uint64]struct{}
}

// Open opens (or creates) the store for one case directory and loads the
// record-id index from any existing event store.
func Open(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create case dir: %w", err)
	}

	s := &Store{
		dir:  dir,
		log:  logger,
		seen: map[string]map[uint64]struct{}{},
	}

	events, err := s.Events()
	if err != nil {
		return nil, err
	}
	for i := range events {
		s.remember(&events[i])
	}
	return s, nil
}

// Dir returns the case directory the store is rooted at.
func (s *Store) Dir() string { return s.dir }

// remember records the (source_file, record_id) pair and reports whether
// it was already present. Caller must hold s.mu (or be in Open).
func (s *Store) remember(event *model.CanonicalEvent) bool {
	if event.RecordID == nil {
		return false
	}
	perFile, ok := s.seen[event.SourceFile]
	if !ok {
		perFile = map[uint64]struct{}{}
		s.seen[event.SourceFile] = perFile
	}
	if _, dup := perFile[*event.RecordID]; dup {
		return true
	}
	perFile[*event.RecordID] = struct{}{}
	return false
}

// AppendEvents appends canonical events to the event store and the event
// text corpus, in input order. A record id already seen for the same
// source file is dropped with a warning; the first occurrence stays.
// Returns the number of events written.
func (s *Store) AppendEvents(events []model.CanonicalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var keep []model.CanonicalEvent
	for i := range events {
		if s.remember(&events[i]) {
			dup := errkind.E(errkind.KindDataIntegrity, "store.AppendEvents",
				fmt.Sprintf("duplicate record id %d in %s", *events[i].RecordID, events[i].SourceFile))
			s.log.Warn("dropping duplicate event record", "error", dup.Error())
			continue
		}
		keep = append(keep, events[i])
	}
	if len(keep) == 0 {
		return 0, nil
	}

	lines := make([]string, 0, len(keep))
	texts := make([]string, 0, len(keep))
	for i := range keep {
		data, err := json.Marshal(&keep[i])
		if err != nil {
			return 0, fmt.Errorf("store: marshal event: %w", err)
		}
		lines = append(lines, string(data))
		texts = append(texts, keep[i].TextLine())
	}

	if err := s.appendLines(eventsFile, lines); err != nil {
		return 0, err
	}
	if err := s.appendLines(eventsTextFile, texts); err != nil {
		return 0, err
	}
	return len(keep), nil
}

// AppendRegistryEntries appends registry entries to the registry store and
// its text corpus, in input order.
func (s *Store) AppendRegistryEntries(entries []model.RegistryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, 0, len(entries))
	texts := make([]string, 0, len(entries))
	for i := range entries {
		data, err := json.Marshal(&entries[i])
		if err != nil {
			return 0, fmt.Errorf("store: marshal registry entry: %w", err)
		}
		lines = append(lines, string(data))
		texts = append(texts, entries[i].TextLine())
	}

	if err := s.appendLines(registryFile, lines); err != nil {
		return 0, err
	}
	if err := s.appendLines(registryTextFile, texts); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Store) appendLines(name string, lines []string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", name, err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("store: write %s: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("store: flush %s: %w", name, err)
	}
	return f.Close()
}

// Events reads the full event store. Malformed lines are skipped, not
// fatal.
func (s *Store) Events() ([]model.CanonicalEvent, error) {
	var events []model.CanonicalEvent
	err := s.readLines(eventsFile, func(line []byte) {
		var event model.CanonicalEvent
		if err := json.Unmarshal(line, &event); err != nil {
			s.log.Debug("skipping malformed event store line", "error", err)
			return
		}
		events = append(events, event)
	})
	return events, err
}

// RegistryEntries reads the full registry store. Malformed lines are
// skipped, not fatal.
func (s *Store) RegistryEntries() ([]model.RegistryEntry, error) {
	var entries []model.RegistryEntry
	err := s.readLines(registryFile, func(line []byte) {
		var entry model.RegistryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			s.log.Debug("skipping malformed registry store line", "error", err)
			return
		}
		entries = append(entries, entry)
	})
	return entries, err
}

// CorpusLine is one flattened text line with its artifact provenance.
type CorpusLine struct {
	Source string
	Text   string
}

// Corpus reads both flattened text corpora for semantic indexing, events
// first, registry second, each in store order.
func (s *Store) Corpus() ([]CorpusLine, error) {
	var lines []CorpusLine
	if err := s.readLines(eventsTextFile, func(line []byte) {
		lines = append(lines, CorpusLine{Source: "evtx", Text: string(line)})
	}); err != nil {
		return nil, err
	}
	if err := s.readLines(registryTextFile, func(line []byte) {
		lines = append(lines, CorpusLine{Source: "registry", Text: string(line)})
	}); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) readLines(name string, fn func(line []byte)) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: open %s: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("store: read %s: %w", name, err)
	}
	return nil
}

// WriteFindings replaces the findings document for the case.
func (s *Store) WriteFindings(doc model.FindingsDocument) error {
	return s.writeDocument(findingsFile, doc)
}

// WriteTopN replaces the top-N document for the case.
func (s *Store) WriteTopN(doc model.TopNDocument) error {
	return s.writeDocument(topNFile, doc)
}

// ReadTopN loads the most recently written top-N document.
func (s *Store) ReadTopN() (model.TopNDocument, error) {
	var doc model.TopNDocument
	data, err := os.ReadFile(filepath.Join(s.dir, topNFile))
	if err != nil {
		return doc, fmt.Errorf("store: read %s: %w", topNFile, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("store: decode %s: %w", topNFile, err)
	}
	return doc, nil
}

// WritePlaybook replaces the rendered playbook for the case.
func (s *Store) WritePlaybook(text string) error {
	path := filepath.Join(s.dir, playbookFile)
	if err := os.WriteFile(path, []byte(text), 0o640); err != nil {
		return fmt.Errorf("store: write %s: %w", playbookFile, err)
	}
	return nil
}

func (s *Store) writeDocument(name string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), append(data, '\n'), 0o640); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	return nil
}
