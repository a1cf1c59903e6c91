// Package css holds the minimal stylesheet model carried by add-stylesheet
// messages. Layout consults it for display and height declarations; there
// is no cascade here.
package css

import (
	"fmt"
	"strings"

	"plover/pkg/html"
)

// Selector is a single simple selector: an element name, .class, or #id.
type Selector struct {
	Raw   string
	Type  SelectorType
	Value string
}

type SelectorType int

const (
	ElementSelector SelectorType = iota // div, p, span
	ClassSelector                       // .classname
	IDSelector                          // #idname
)

// Matches reports whether the selector matches the given element.
func (s Selector) Matches(n *html.Node) bool {
	if !n.IsElement() {
		return false
	}
	switch s.Type {
	case ElementSelector:
		return n.TagName == s.Value
	case ClassSelector:
		classes, _ := n.GetAttribute("class")
		for _, c := range strings.Fields(classes) {
			if c == s.Value {
				return true
			}
		}
		return false
	case IDSelector:
		return n.ID() == s.Value
	}
	return false
}

// Rule is one selector plus its declarations.
type Rule struct {
	Selector     Selector
	Declarations map[string]string // property -> value
}

// Stylesheet is a parsed stylesheet.
type Stylesheet struct {
	Rules []Rule
}

// DeclarationsFor returns the merged declarations of every rule matching
// the node, later rules winning. Returns nil if nothing matches.
func (s *Stylesheet) DeclarationsFor(n *html.Node) map[string]string {
	var merged map[string]string
	for _, rule := range s.Rules {
		if !rule.Selector.Matches(n) {
			continue
		}
		if merged == nil {
			merged = make(map[string]string, len(rule.Declarations))
		}
		for k, v := range rule.Declarations {
			merged[k] = v
		}
	}
	return merged
}

// Parse parses stylesheet text into rules. Malformed rules are skipped
// rather than failing the whole sheet.
func Parse(text string) (*Stylesheet, error) {
	sheet := &Stylesheet{Rules: make([]Rule, 0)}

	text = stripComments(strings.TrimSpace(text))
	if text == "" {
		return sheet, nil
	}

	for _, ruleStr := range splitRules(text) {
		rule, err := parseRule(ruleStr)
		if err != nil {
			continue
		}
		sheet.Rules = append(sheet.Rules, rule)
	}
	return sheet, nil
}

func stripComments(text string) string {
	for {
		start := strings.Index(text, "/*")
		if start == -1 {
			return text
		}
		end := strings.Index(text[start+2:], "*/")
		if end == -1 {
			return text[:start]
		}
		text = text[:start] + text[start+2+end+2:]
	}
}

// splitRules splits stylesheet text into "selector { decls }" chunks.
func splitRules(text string) []string {
	rules := make([]string, 0)
	depth := 0
	start := 0
	for i, ch := range text {
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if chunk := strings.TrimSpace(text[start : i+1]); chunk != "" {
					rules = append(rules, chunk)
				}
				start = i + 1
			}
		}
	}
	return rules
}

func parseRule(ruleStr string) (Rule, error) {
	bracePos := strings.Index(ruleStr, "{")
	if bracePos == -1 {
		return Rule{}, fmt.Errorf("no opening brace in rule %q", ruleStr)
	}
	selector := parseSelector(ruleStr[:bracePos])

	declEnd := strings.LastIndex(ruleStr, "}")
	if declEnd == -1 {
		declEnd = len(ruleStr)
	}
	return Rule{
		Selector:     selector,
		Declarations: parseDeclarations(ruleStr[bracePos+1 : declEnd]),
	}, nil
}

func parseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	sel := Selector{Raw: raw}
	switch {
	case strings.HasPrefix(raw, "."):
		sel.Type = ClassSelector
		sel.Value = raw[1:]
	case strings.HasPrefix(raw, "#"):
		sel.Type = IDSelector
		sel.Value = raw[1:]
	default:
		sel.Type = ElementSelector
		sel.Value = strings.ToLower(raw)
	}
	return sel
}

func parseDeclarations(declStr string) map[string]string {
	decls := make(map[string]string)
	for _, d := range strings.Split(declStr, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		colon := strings.Index(d, ":")
		if colon == -1 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(d[:colon]))
		val := strings.TrimSpace(d[colon+1:])
		if prop != "" && val != "" {
			decls[prop] = val
		}
	}
	return decls
}
