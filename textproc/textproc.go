// Package textproc applies the deterministic corrective substitutions that
// clean up merged recognition output: known misrecognition patterns and
// spacing normalization around punctuation and currency symbols.
package textproc

import "strings"

// Rule is one literal substring substitution. Later rules operate on the
// output of earlier rules; the default set uses disjoint patterns.
type Rule struct {
	Old string
	New string
}

// DefaultRules are the stock corrections: a known glyph confusion and
// spacing normalization around colons, currency symbols, and hyphens.
func DefaultRules() []Rule {
	return []Rule{
		{Old: "I1em", New: "Item"},
		{Old: " :", New: ":"},
		{Old: "$ ", New: "$"},
		{Old: " - ", New: "-"},
	}
}

// Processor cleans recognized lines. The zero value uses DefaultRules.
type Processor struct {
	Rules []Rule
}

// Clean applies the rules to each line in order, collapses interior
// whitespace runs, trims, and drops lines left empty. It is pure and
// repeatable: equal input always yields equal output.
func (p Processor) Clean(lines []string) []string {
	rules := p.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, rule := range rules {
			line = strings.ReplaceAll(line, rule.Old, rule.New)
		}
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return cleaned
}
