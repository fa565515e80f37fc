// Package playbook renders a ranked Top-N document into a markdown report
// for the investigator. The renderer is read-only: it never recomputes
// scores, only formats what the scoring engine produced.
package playbook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
)

// Renderer formats triage output. The clock is injected so report
// generation stays testable; scoring itself never consults it.
type Renderer struct {
	now func() time.Time
}

func New() *Renderer {
	return &Renderer{now: time.Now}
}

// NewWithClock builds a renderer with a fixed clock.
func NewWithClock(now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{now: now}
}

// Render produces the pre-investigation playbook for a ranked document.
func (r *Renderer) Render(doc model.TopNDocument) string {
	var b strings.Builder

	b.WriteString("# Pre-Investigation Playbook\n\n")
	b.WriteString("Generated: " + r.now().UTC().Format("2006-01-02T15:04:05") + "Z\n\n")
	b.WriteString("## Top Findings (ranked)\n\n")

	for i, item := range doc.Items {
		reasons := strings.Join(item.Reasons, "; ")
		fmt.Fprintf(&b, "%d. **%s** [%s], score %d: %s\n", i+1, item.Source, item.Kind, item.Score, itemDetail(item))
		fmt.Fprintf(&b, "   - Reasons: %s\n", reasons)
	}

	b.WriteString("\n## Next Actions\n\n")
	b.WriteString("- Verify autorun binaries on disk; hash & signature check.\n")
	b.WriteString("- Correlate event hits with Security 4688 process creation if available.\n")
	b.WriteString("- Build a short timeline (Prefetch/AmCache) around top items.\n")
	b.WriteString("- Export artifacts with SHA256; maintain chain-of-custody.\n")

	return b.String()
}

// itemDetail renders a one-line, source-specific description from the raw
// reference. The raw value may be a typed record (in-process) or a generic
// map (read back from a stored document), so it is flattened through JSON.
func itemDetail(item model.RankedItem) string {
	fields := rawFields(item.Raw)

	switch {
	case item.Source == "registry" && item.Kind == "autorun":
		return fmt.Sprintf("%s -> %s = %s", fields["key_path"], fields["value_name"], fields["value"])
	case item.Source == "registry":
		return fmt.Sprintf("%s (%s)", fields["display_name"], fields["publisher"])
	case item.Source == "evtx":
		return fmt.Sprintf("%s record=%s time=%s", fields["source_file"], fields["record_number"], fields["timestamp"])
	}
	return item.Text
}

func rawFields(raw interface{}) map[string]string {
	out := map[string]string{}
	if raw == nil {
		return out
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return out
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return out
	}

	for key, value := range generic {
		switch v := value.(type) {
		case nil:
			out[key] = "?"
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
