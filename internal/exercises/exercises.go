// Package exercises canonicalizes exercise names from manual training logs.
package exercises

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrOverlap is returned by Validate when a rule's match occurs inside some
// rule's replacement, which would make normalization non-idempotent.
var ErrOverlap = errors.New("overlapping rename rules")

//go:embed renames.yaml
var defaultRules []byte

// Rule replaces every occurrence of Match with Replace.
type Rule struct {
	Match   string `yaml:"match" json:"match"`
	Replace string `yaml:"replace" json:"replace"`
}

// Renamer applies an ordered list of rules to title-cased names.
//
// Invariant: no rule's Match is a substring of any rule's Replace, and every
// Match and Replace is stable under Normalize. New and Load enforce it.
type Renamer struct {
	rules []Rule
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// New builds a Renamer from rules applied in order.
func New(rules []Rule) (*Renamer, error) {
	r := &Renamer{rules: append([]Rule(nil), rules...)}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Default returns the built-in rename table.
func Default() *Renamer {
	r, err := Load(strings.NewReader(string(defaultRules)))
	if err != nil {
		panic(fmt.Sprintf("embedded rename table: %v", err))
	}
	return r
}

// Load reads rules from YAML of the form {rules: [{match, replace}]}.
func Load(rd io.Reader) (*Renamer, error) {
	var f ruleFile
	if err := yaml.NewDecoder(rd).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing rename table: %w", err)
	}
	return New(f.Rules)
}

// LoadFile reads rules from a YAML file.
func LoadFile(path string) (*Renamer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rename table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Rules returns a copy of the rule list.
func (r *Renamer) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Normalize title-cases a raw label, collapses whitespace and applies every
// rule in order. A nil Renamer only title-cases.
func (r *Renamer) Normalize(raw string) string {
	name := Title(raw)
	if r == nil {
		return name
	}
	for _, rule := range r.rules {
		name = strings.ReplaceAll(name, rule.Match, rule.Replace)
	}
	return name
}

// Title title-cases s word by word and collapses runs of whitespace.
func Title(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und).String(s)
}

// Validate checks the non-overlap invariant.
func (r *Renamer) Validate() error {
	for i, rule := range r.rules {
		if strings.TrimSpace(rule.Match) == "" {
			return fmt.Errorf("rule %d: empty match", i)
		}
		if Title(rule.Match) != rule.Match {
			return fmt.Errorf("rule %d: match %q never occurs in a title-cased name", i, rule.Match)
		}
		for j, other := range r.rules {
			if strings.Contains(other.Replace, rule.Match) {
				return fmt.Errorf("rule %d match %q inside rule %d replacement %q: %w",
					i, rule.Match, j, other.Replace, ErrOverlap)
			}
		}
	}
	for i, rule := range r.rules {
		if got := r.Normalize(rule.Replace); got != rule.Replace {
			return fmt.Errorf("rule %d: replacement %q normalizes to %q: %w", i, rule.Replace, got, ErrOverlap)
		}
	}
	return nil
}
