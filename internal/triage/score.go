// Package triage converts frozen normalized corpora into ranked, capped
// suspicion findings. Scoring is a pure function of its inputs: no clocks,
// no randomness, stable ordering, so re-running triage on the same stores
// reproduces byte-identical output.
package triage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/internal/registry"
)

const (
	scoreAutorunEntry  = 80
	scoreNonMSApp      = 30
	scoreSampledEvents = 15

	maxFindings = 20
	maxTopN     = 15

	autostartBonus = 10
	longTextBonus  = 2
	longTextLength = 200
)

// Publishers never worth a non-first-party finding.
var firstPartyVendors = map[string]struct{}{
	"microsoft":             {},
	"microsoft corporation": {},
}

// Engine scores frozen corpora against a validated rule table.
type Engine struct {
	rules              *RuleTable
	log                *logging.Logger
	maxEventCandidates int
}

func NewEngine(rules *RuleTable, maxEventCandidates int, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if maxEventCandidates <= 0 {
		maxEventCandidates = 2000
	}
	return &Engine{rules: rules, log: logger, maxEventCandidates: maxEventCandidates}
}

// installedApp is one grouped installed-software record, rebuilt from the
// per-value registry entries under a single Uninstall subkey.
type installedApp struct {
	KeyPath     string `json:"key_path"`
	DisplayName string `json:"display_name"`
	Publisher   string `json:"publisher"`
	Version     string `json:"version"`
}

// Findings runs the category pass: fixed-score findings per autostart entry
// and per non-first-party installed application, plus one meta finding
// counting sampled event records. Sorted descending, stable, capped.
func (e *Engine) Findings(entries []model.RegistryEntry, eventCount int) model.FindingsDocument {
	findings := []model.Finding{}

	for _, entry := range entries {
		if !isAutostart(entry.Category) {
			continue
		}
		findings = append(findings, model.Finding{
			Signal: "autorun_entry",
			Detail: fmt.Sprintf("%s -> %s = %s", entry.KeyPath, entry.ValueName, entry.Value),
			Score:  scoreAutorunEntry,
		})
	}

	for _, app := range collectInstalledApps(entries) {
		// Export-sourced values keep their surrounding quotes.
		publisher := strings.ToLower(strings.Trim(strings.TrimSpace(app.Publisher), `"`))
		if publisher == "" {
			continue
		}
		if _, firstParty := firstPartyVendors[publisher]; firstParty {
			continue
		}
		findings = append(findings, model.Finding{
			Signal: "installed_app_non_ms",
			Detail: fmt.Sprintf("%s (%s)", app.DisplayName, app.Publisher),
			Score:  scoreNonMSApp,
		})
	}

	findings = append(findings, model.Finding{
		Signal: "evtx_sampled_records",
		Detail: fmt.Sprintf("Sampled records captured: %d", eventCount),
		Score:  scoreSampledEvents,
	})

	metrics.FindingsEmitted.Add(float64(len(findings)))
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Score > findings[j].Score
	})
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}
	return model.FindingsDocument{Findings: findings}
}

type candidate struct {
	source    string
	kind      string
	text      string
	raw       interface{}
	autostart bool
}

// Rank runs the free-text pass: every autostart entry, installed app and
// sampled event becomes one candidate string scored against the rule table.
// Sorted descending, stable, capped.
func (e *Engine) Rank(entries []model.RegistryEntry, events []model.CanonicalEvent) model.TopNDocument {
	candidates := e.collectCandidates(entries, events)
	metrics.CandidatesRanked.Add(float64(len(candidates)))

	items := make([]model.RankedItem, 0, len(candidates))
	for _, c := range candidates {
		score, reasons := e.scoreText(c.text)
		if c.autostart {
			score += autostartBonus
		}
		items = append(items, model.RankedItem{
			Source:  c.source,
			Kind:    c.kind,
			Text:    c.text,
			Score:   score,
			Reasons: reasons,
			Raw:     c.raw,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > maxTopN {
		items = items[:maxTopN]
	}
	return model.TopNDocument{Items: items}
}

func (e *Engine) collectCandidates(entries []model.RegistryEntry, events []model.CanonicalEvent) []candidate {
	var candidates []candidate

	for _, entry := range entries {
		if !isAutostart(entry.Category) {
			continue
		}
		candidates = append(candidates, candidate{
			source:    "registry",
			kind:      "autorun",
			text:      fmt.Sprintf("AUTORUN %s %s = %s", entry.KeyPath, entry.ValueName, entry.Value),
			raw:       entry,
			autostart: true,
		})
	}

	for _, app := range collectInstalledApps(entries) {
		candidates = append(candidates, candidate{
			source: "registry",
			kind:   "installed_app",
			text:   fmt.Sprintf("INSTALLED_APP %s %s", app.DisplayName, app.Publisher),
			raw:    app,
		})
	}

	for i, event := range events {
		if i >= e.maxEventCandidates {
			e.log.Debug("event candidate cap reached", "cap", e.maxEventCandidates)
			break
		}
		candidates = append(candidates, candidate{
			source: "evtx",
			kind:   "event",
			text:   event.TextLine(),
			raw:    event,
		})
	}
	return candidates
}

// scoreText sums the weight of every matching rule, collecting reasons in
// first-match order without duplicates, plus a small bonus for unusually
// long candidates.
func (e *Engine) scoreText(text string) (int, []string) {
	score := 0
	var reasons []string
	seen := map[string]struct{}{}

	for _, rule := range e.rules.Rules {
		if !rule.re.MatchString(text) {
			continue
		}
		score += rule.Weight
		if _, dup := seen[rule.Reason]; !dup {
			seen[rule.Reason] = struct{}{}
			reasons = append(reasons, rule.Reason)
		}
	}
	if len(text) > longTextLength {
		score += longTextBonus
	}
	return score, reasons
}

func isAutostart(category string) bool {
	return category == registry.CategoryAutostartRun || category == registry.CategoryAutostartRunOnce
}

// collectInstalledApps groups installed-software value entries by their
// Uninstall subkey path back into per-application records.
func collectInstalledApps(entries []model.RegistryEntry) []installedApp {
	var order []string
	byKey := map[string]*installedApp{}

	for _, entry := range entries {
		if entry.Category != registry.CategoryInstalledSW {
			continue
		}
		app, ok := byKey[entry.KeyPath]
		if !ok {
			app = &installedApp{KeyPath: entry.KeyPath}
			byKey[entry.KeyPath] = app
			order = append(order, entry.KeyPath)
		}
		switch {
		case strings.EqualFold(entry.ValueName, "DisplayName"):
			app.DisplayName = entry.Value
		case strings.EqualFold(entry.ValueName, "Publisher"):
			app.Publisher = entry.Value
		case strings.EqualFold(entry.ValueName, "DisplayVersion"):
			app.Version = entry.Value
		}
	}

	apps := make([]installedApp, 0, len(order))
	for _, key := range order {
		app := byKey[key]
		if app.DisplayName == "" && app.Publisher == "" && app.Version == "" {
			continue
		}
		apps = append(apps, *app)
	}
	return apps
}
