package playbook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
}

func sampleDoc() model.TopNDocument {
	record := uint64(1203)
	ts := "2024-03-01T10:02:31Z"
	return model.TopNDocument{
		Items: []model.RankedItem{
			{
				Source:  "registry",
				Kind:    "autorun",
				Text:    `AUTORUN Microsoft\Windows\CurrentVersion\Run Updater = C:\u.exe`,
				Score:   50,
				Reasons: []string{"User-writable AppData path", "Binary reference"},
				Raw: model.RegistryEntry{
					KeyPath:   `Microsoft\Windows\CurrentVersion\Run`,
					ValueName: "Updater",
					Value:     `C:\u.exe`,
				},
			},
			{
				Source:  "evtx",
				Kind:    "event",
				Text:    "[2024-03-01T10:02:31Z] EventID=4688 ...",
				Score:   30,
				Reasons: []string{"Command shell invocation"},
				Raw: model.CanonicalEvent{
					SourceFile: "Security.evtx",
					RecordID:   &record,
					EventID:    4688,
					Timestamp:  &ts,
				},
			},
		},
	}
}

func TestRender(t *testing.T) {
	out := NewWithClock(fixedClock).Render(sampleDoc())

	assert.Contains(t, out, "# Pre-Investigation Playbook")
	assert.Contains(t, out, "Generated: 2026-08-29T12:00:00Z")
	assert.Contains(t, out, "## Top Findings (ranked)")
	assert.Contains(t, out, "## Next Actions")

	assert.Contains(t, out, `1. **registry** [autorun], score 50: Microsoft\Windows\CurrentVersion\Run -> Updater = C:\u.exe`)
	assert.Contains(t, out, "- Reasons: User-writable AppData path; Binary reference")
	assert.Contains(t, out, "2. **evtx** [event], score 30: Security.evtx record=1203 time=2024-03-01T10:02:31Z")
	assert.Contains(t, out, "chain-of-custody")
}

func TestRenderEmptyDocument(t *testing.T) {
	out := NewWithClock(fixedClock).Render(model.TopNDocument{})

	assert.Contains(t, out, "## Top Findings (ranked)")
	assert.Contains(t, out, "## Next Actions")
	assert.NotContains(t, out, "score")
}

func TestRenderFromStoredDocument(t *testing.T) {
	// A document read back from disk carries generic maps as raw
	// references; the detail must come out identical.
	encoded, err := json.Marshal(sampleDoc())
	require.NoError(t, err)

	var doc model.TopNDocument
	require.NoError(t, json.Unmarshal(encoded, &doc))

	out := NewWithClock(fixedClock).Render(doc)
	assert.Contains(t, out, `Microsoft\Windows\CurrentVersion\Run -> Updater = C:\u.exe`)
	assert.Contains(t, out, "Security.evtx record=1203 time=2024-03-01T10:02:31Z")
}

func TestRenderIsDeterministicGivenClock(t *testing.T) {
	r := NewWithClock(fixedClock)
	doc := sampleDoc()
	assert.Equal(t, r.Render(doc), r.Render(doc))
}
