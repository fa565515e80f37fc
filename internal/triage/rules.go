package triage

import (
	_ "embed"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is one declarative detection signature. Patterns are matched case
// insensitively against candidate text.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Weight  int    `yaml:"weight"`
	Reason  string `yaml:"reason"`

	re *regexp.Regexp
}

// RuleTable is a versioned set of detection rules, loadable from YAML so
// signatures evolve without code changes.
type RuleTable struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() (*RuleTable, error) {
	return parseRules(defaultRulesYAML)
}

// LoadRules reads a rule table from a YAML file, falling back to the
// built-in table when path is empty. Any invalid rule fails the load; a bad
// table must never surface mid-run.
func LoadRules(path string) (*RuleTable, error) {
	if path == "" {
		return DefaultRules()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.E(errkind.KindConfiguration, "triage.LoadRules", "read rule table", err)
	}
	return parseRules(raw)
}

func parseRules(raw []byte) (*RuleTable, error) {
	const op = "triage.parseRules"

	var table RuleTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, errkind.E(errkind.KindConfiguration, op, "parse rule table", err)
	}
	if table.Version == "" {
		return nil, errkind.E(errkind.KindConfiguration, op, "rule table has no version")
	}
	if len(table.Rules) == 0 {
		return nil, errkind.E(errkind.KindConfiguration, op, "rule table has no rules")
	}

	for i := range table.Rules {
		rule := &table.Rules[i]
		if rule.Weight <= 0 {
			return nil, errkind.E(errkind.KindConfiguration, op, "rule "+rule.Pattern+" has non-positive weight")
		}
		if rule.Reason == "" {
			return nil, errkind.E(errkind.KindConfiguration, op, "rule "+rule.Pattern+" has no reason")
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, errkind.E(errkind.KindConfiguration, op, "rule "+rule.Pattern+" does not compile", err)
		}
		rule.re = re
	}
	return &table, nil
}
