package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/internal/store"
)

func strptr(s string) *string { return &s }

func u64ptr(u uint64) *uint64 { return &u }

func event(source string, record uint64, eventID int) model.CanonicalEvent {
	return model.CanonicalEvent{
		SourceFile: source,
		RecordID:   u64ptr(record),
		EventID:    eventID,
		Timestamp:  strptr("2024-03-01T10:00:00Z"),
		Data:       model.Attributes{{Name: "TargetUserName", Value: "admin"}},
	}
}

func TestAppendAndReadEvents(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	n, err := s.AppendEvents([]model.CanonicalEvent{
		event("Security.evtx", 1, 4624),
		event("Security.evtx", 2, 4625),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 4624, events[0].EventID)
	assert.Equal(t, 4625, events[1].EventID)
}

func TestDuplicateRecordIDKeepsFirst(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	first := event("Security.evtx", 7, 4624)
	dup := event("Security.evtx", 7, 4625)

	n, err := s.AppendEvents([]model.CanonicalEvent{first, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := s.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 4624, events[0].EventID)
}

func TestDuplicateDetectionSpansBatchesAndReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open(dir, nil)
	require.NoError(t, err)
	_, err = s.AppendEvents([]model.CanonicalEvent{event("System.evtx", 42, 7045)})
	require.NoError(t, err)

	// Same id in a later batch.
	n, err := s.AppendEvents([]model.CanonicalEvent{event("System.evtx", 42, 7045)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Same id after reopening the case.
	reopened, err := store.Open(dir, nil)
	require.NoError(t, err)
	n, err = reopened.AppendEvents([]model.CanonicalEvent{event("System.evtx", 42, 7045)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSameRecordIDInDifferentFilesIsKept(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	n, err := s.AppendEvents([]model.CanonicalEvent{
		event("Security.evtx", 1, 4624),
		event("System.evtx", 1, 7045),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilRecordIDNeverDeduplicated(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	noID := model.CanonicalEvent{SourceFile: "Security.evtx", EventID: 4104}
	n, err := s.AppendEvents([]model.CanonicalEvent{noID, noID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCorpusOrderAndProvenance(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = s.AppendEvents([]model.CanonicalEvent{event("Security.evtx", 1, 4688)})
	require.NoError(t, err)
	_, err = s.AppendRegistryEntries([]model.RegistryEntry{{
		Hive:      "SOFTWARE",
		KeyPath:   `Microsoft\Windows\CurrentVersion\Run`,
		Category:  "autostart_run",
		ValueName: "Updater",
		Value:     `C:\tools\up.exe`,
		ValueType: "REG_SZ",
	}})
	require.NoError(t, err)

	corpus, err := s.Corpus()
	require.NoError(t, err)
	require.Len(t, corpus, 2)
	assert.Equal(t, "evtx", corpus[0].Source)
	assert.Contains(t, corpus[0].Text, "EventID=4688")
	assert.Equal(t, "registry", corpus[1].Source)
	assert.Contains(t, corpus[1].Text, "autostart_run")
}

func TestMalformedStoreLineIsSkipped(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, nil)
	require.NoError(t, err)
	_, err = s.AppendEvents([]model.CanonicalEvent{event("Security.evtx", 1, 4624)})
	require.NoError(t, err)

	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_WRONLY, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := s.Events()
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriteDocumentsRoundTrip(t *testing.T) {
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)

	topN := model.TopNDocument{Items: []model.RankedItem{{
		Source:  "registry",
		Kind:    "autorun",
		Text:    "AUTORUN ...",
		Score:   90,
		Reasons: []string{"LOLBIN: PowerShell"},
	}}}
	require.NoError(t, s.WriteTopN(topN))
	require.NoError(t, s.WriteFindings(model.FindingsDocument{Findings: []model.Finding{}}))
	require.NoError(t, s.WritePlaybook("# Pre-Investigation Playbook\n"))

	got, err := s.ReadTopN()
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 90, got.Items[0].Score)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "playbook.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Pre-Investigation Playbook"))
}
