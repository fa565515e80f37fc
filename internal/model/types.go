// Package model defines the canonical record types shared by the
// normalizers, the scoring engine, the playbook renderer and the semantic
// index. Records are immutable once written to a case store.
package model

import (
	"strconv"
	"strings"
)

// CanonicalEvent is one normalized host-event-log record.
// RecordID is nullable: a record whose identifier cannot be resolved is
// still emitted, never dropped for that reason alone.
type CanonicalEvent struct {
	SourceFile string     `json:"source_file"`
	RecordID   *uint64    `json:"record_number"`
	EventID    int        `json:"event_id"`
	Timestamp  *string    `json:"timestamp"`
	Computer   *string    `json:"computer"`
	Channel    *string    `json:"channel"`
	Data       Attributes `json:"data"`
	Tags       []string   `json:"tags,omitempty"`
}

// TextLine renders the event as a single line for the flattened text
// corpus used by scoring and semantic indexing.
func (e *CanonicalEvent) TextLine() string {
	var b strings.Builder
	b.WriteString("[" + orUnknownTime(e.Timestamp) + "]")
	b.WriteString(" EventID=" + strconv.Itoa(e.EventID))
	b.WriteString(" Record=" + recordRef(e.RecordID))
	b.WriteString(" Computer=" + deref(e.Computer))
	b.WriteString(" Channel=" + deref(e.Channel))
	for _, attr := range e.Data {
		if attr.Value == "" {
			continue
		}
		b.WriteString(" " + attr.Name + "=" + flattenValue(attr.Value))
	}
	return strings.TrimSpace(b.String())
}

// RegistryEntry is one normalized registry value.
type RegistryEntry struct {
	Hive      string  `json:"hive"`
	KeyPath   string  `json:"key_path"`
	Category  string  `json:"category"`
	ValueName string  `json:"value_name"`
	Value     string  `json:"value"`
	ValueType string  `json:"value_type"`
	LastWrite *string `json:"last_write"`
}

// TextLine renders the entry as a single line for the flattened text
// corpus.
func (r *RegistryEntry) TextLine() string {
	return "[" + orUnknownTime(r.LastWrite) + "]" +
		" HIVE=" + r.Hive +
		" Category=" + r.Category +
		" Key=" + r.KeyPath +
		" ValueName=" + r.ValueName +
		" Value=" + flattenValue(r.Value)
}

// Finding is one category-level signal. Findings are fully regenerated on
// every triage run, never mutated in place.
type Finding struct {
	Signal string `json:"signal"`
	Detail string `json:"detail"`
	Score  int    `json:"score"`
}

// FindingsDocument is the capped findings output document.
type FindingsDocument struct {
	Findings []Finding `json:"findings"`
}

// RankedItem is one entry of the free-text heuristic ranking. Reasons are
// deduplicated in first-match order.
type RankedItem struct {
	Source  string      `json:"source"`
	Kind    string      `json:"kind"`
	Text    string      `json:"text"`
	Score   int         `json:"score"`
	Reasons []string    `json:"reasons"`
	Raw     interface{} `json:"raw"`
}

// TopNDocument is the capped ranking output document.
type TopNDocument struct {
	Items []RankedItem `json:"items"`
}

// IndexEntry is one embedded text stored in the semantic index. The ID is
// freshly generated on every ingest so repeated ingests of the same case
// never collide.
type IndexEntry struct {
	CaseID   string            `json:"case_id"`
	DocID    string            `json:"doc_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"vector"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orUnknownTime(s *string) string {
	if s == nil || *s == "" {
		return "UNKNOWN_TIME"
	}
	return *s
}

func recordRef(id *uint64) string {
	if id == nil {
		return "?"
	}
	return strconv.FormatUint(*id, 10)
}

func flattenValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
