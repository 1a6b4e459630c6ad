// Package classify decides whether a function failure is an accepted
// validation response or a defect.
//
// Rules are tried in order and the first match wins. Regex rules are written
// in free-spacing form: whitespace in the pattern is ignored and \s stands
// for a single whitespace character. Messages have their whitespace runs
// collapsed before matching, so text wrapped across lines still matches.
package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"extsweep/internal/logging"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Rule is one known-acceptable failure. Exactly one of Pattern and
// Substring is set.
type Rule struct {
	Name      string `yaml:"name"`
	Pattern   string `yaml:"pattern,omitempty"`
	Substring string `yaml:"substring,omitempty"`
}

type compiled struct {
	rule   Rule
	re     *regexp.Regexp
	folded string
}

// Classifier holds an ordered, precompiled rule set.
type Classifier struct {
	rules []compiled
}

// New compiles rules.
func New(rules []Rule) (*Classifier, error) {
	c := &Classifier{}
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule_%d", i)
		}
		switch {
		case r.Pattern != "" && r.Substring != "":
			return nil, fmt.Errorf("rule %s: pattern and substring are mutually exclusive", r.Name)
		case r.Pattern != "":
			re, err := regexp.Compile("(?i)" + stripFreeSpacing(r.Pattern))
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.Name, err)
			}
			c.rules = append(c.rules, compiled{rule: r, re: re})
		case r.Substring != "":
			c.rules = append(c.rules, compiled{rule: r, folded: cases.Fold().String(normalize(r.Substring))})
		default:
			return nil, fmt.Errorf("rule %s: pattern or substring is required", r.Name)
		}
	}
	return c, nil
}

// MustNew is New for rule sets known to compile.
func MustNew(rules []Rule) *Classifier {
	c, err := New(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the first rule matching msg.
func (c *Classifier) Classify(msg string) (Rule, bool) {
	msg = normalize(msg)
	folded, foldedOK := "", false
	for _, r := range c.rules {
		if r.re != nil {
			if r.re.MatchString(msg) {
				return c.matched(r.rule, msg)
			}
			continue
		}
		if !foldedOK {
			folded, foldedOK = cases.Fold().String(msg), true
		}
		if strings.Contains(folded, r.folded) {
			return c.matched(r.rule, msg)
		}
	}
	return Rule{}, false
}

func (c *Classifier) matched(r Rule, msg string) (Rule, bool) {
	logging.Get(logging.CategoryClassify).Debug("%q accepted by %s", msg, r.Name)
	return r, true
}

// Len is the number of rules.
func (c *Classifier) Len() int {
	return len(c.rules)
}

// normalize collapses whitespace runs into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripFreeSpacing removes insignificant whitespace from a free-spacing
// pattern. Escaped characters and character classes are left alone.
func stripFreeSpacing(p string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		ch := p[i]
		switch {
		case ch == '\\' && i+1 < len(p):
			b.WriteByte(ch)
			b.WriteByte(p[i+1])
			i++
		case inClass:
			if ch == ']' {
				inClass = false
			}
			b.WriteByte(ch)
		case ch == '[':
			inClass = true
			b.WriteByte(ch)
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// ruleFile is the YAML layout of a rule file.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}
	return f.Rules, nil
}
