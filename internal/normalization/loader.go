package normalization

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk YAML layout:
//
//	strip_non_alphanumeric: false
//	case_insensitive: false
//	rules:
//	  - root: NQ
//	  - root: ES
//	    key: ES
type ruleFile struct {
	StripNonAlphanumeric bool   `yaml:"strip_non_alphanumeric"`
	CaseInsensitive      bool   `yaml:"case_insensitive"`
	Rules                []Rule `yaml:"rules"`
}

// ParseRules builds a RuleTable from YAML.
func ParseRules(data []byte) (*RuleTable, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("decode rules: no rules defined")
	}

	var opts []Option
	if f.StripNonAlphanumeric {
		opts = append(opts, WithStripNonAlphanumeric())
	}
	if f.CaseInsensitive {
		opts = append(opts, WithCaseInsensitive())
	}
	return NewRuleTable(f.Rules, opts...)
}

// Built-in rule set names.
const (
	RuleSetDefault  = "default"
	RuleSetExtended = "extended"
)

// RuleSet returns a built-in table by name. An empty name is the default.
func RuleSet(name string) (*RuleTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RuleSetDefault:
		return Default(), nil
	case RuleSetExtended:
		return MustRuleTable(ExtendedRules), nil
	default:
		return nil, fmt.Errorf("unknown rule set %q", name)
	}
}

// Load picks the rule file when one is given, else the named rule set.
func Load(ruleSet, path string) (*RuleTable, error) {
	if path != "" {
		return LoadRules(path)
	}
	return RuleSet(ruleSet)
}

// LoadRules reads a YAML rule file. An empty path yields Default().
func LoadRules(path string) (*RuleTable, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}
