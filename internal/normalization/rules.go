package normalization

import (
	"fmt"
	"strings"
	"unicode"
)

// Rule collapses every symbol containing Root into Key.
type Rule struct {
	Root string `yaml:"root"`
	Key  string `yaml:"key,omitempty"` // defaults to Root
}

// DefaultRules is the reference policy: micro and full-size NQ contracts
// share one group.
var DefaultRules = []Rule{
	{Root: "NQ"},
}

// ExtendedRules adds the ES and CL families.
var ExtendedRules = []Rule{
	{Root: "NQ"},
	{Root: "ES"},
	{Root: "CL"},
}

// RuleTable is an ordered, inspectable rule list. The first rule whose
// root occurs in the symbol wins; unmatched symbols map to themselves.
type RuleTable struct {
	rules           []Rule
	stripNonAlnum   bool
	caseInsensitive bool
}

// Option configures a RuleTable.
type Option func(*RuleTable)

// WithStripNonAlphanumeric removes non-alphanumeric characters before
// matching. Unmatched symbols are then returned stripped.
func WithStripNonAlphanumeric() Option {
	return func(t *RuleTable) { t.stripNonAlnum = true }
}

// WithCaseInsensitive folds roots and symbols to upper case before
// matching. Unmatched symbols keep their original case.
func WithCaseInsensitive() Option {
	return func(t *RuleTable) { t.caseInsensitive = true }
}

// NewRuleTable validates rules and returns a table. Roots are matched as
// exact substrings unless WithCaseInsensitive is given.
func NewRuleTable(rules []Rule, opts ...Option) (*RuleTable, error) {
	t := &RuleTable{rules: make([]Rule, 0, len(rules))}
	for i, r := range rules {
		root := strings.TrimSpace(r.Root)
		if root == "" {
			return nil, fmt.Errorf("rule %d: empty root", i)
		}
		key := strings.TrimSpace(r.Key)
		if key == "" {
			key = root
		}
		t.rules = append(t.rules, Rule{Root: root, Key: key})
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MustRuleTable is NewRuleTable that panics on invalid rules.
// Intended for package-level tables built from literals.
func MustRuleTable(rules []Rule, opts ...Option) *RuleTable {
	t, err := NewRuleTable(rules, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns a table over DefaultRules.
func Default() *RuleTable {
	return MustRuleTable(DefaultRules)
}

// Normalize returns the canonical key for symbol.
func (t *RuleTable) Normalize(symbol string) string {
	s := symbol
	if t.stripNonAlnum {
		s = stripNonAlphanumeric(s)
	}
	match := s
	if t.caseInsensitive {
		match = strings.ToUpper(s)
	}
	for _, r := range t.rules {
		root := r.Root
		if t.caseInsensitive {
			root = strings.ToUpper(root)
		}
		if strings.Contains(match, root) {
			return r.Key
		}
	}
	return s
}

// Rules returns a copy of the normalized rule list in match order.
func (t *RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// StripsNonAlphanumeric reports whether symbols are stripped before matching.
func (t *RuleTable) StripsNonAlphanumeric() bool {
	return t.stripNonAlnum
}

// CaseInsensitive reports whether matching ignores case.
func (t *RuleTable) CaseInsensitive() bool {
	return t.caseInsensitive
}

// String renders the table as "ROOT=KEY,..." with ";strip" and ";nocase"
// suffixes for the enabled options. Used to fingerprint runs.
func (t *RuleTable) String() string {
	parts := make([]string, len(t.rules))
	for i, r := range t.rules {
		parts[i] = r.Root + "=" + r.Key
	}
	s := strings.Join(parts, ",")
	if t.stripNonAlnum {
		s += ";strip"
	}
	if t.caseInsensitive {
		s += ";nocase"
	}
	return s
}

func stripNonAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

var _ Normalizer = (*RuleTable)(nil)
