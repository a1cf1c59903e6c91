package css

import (
	"testing"

	"plover/pkg/html"
)

func TestParseBasicRules(t *testing.T) {
	sheet, err := Parse(`
		p { height: 40px; }
		.hidden { display: none; }
		#header { height: 64px; display: block }
	`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sheet.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].Selector.Type != ElementSelector || sheet.Rules[0].Selector.Value != "p" {
		t.Errorf("rule 0: unexpected selector %+v", sheet.Rules[0].Selector)
	}
	if sheet.Rules[1].Selector.Type != ClassSelector || sheet.Rules[1].Selector.Value != "hidden" {
		t.Errorf("rule 1: unexpected selector %+v", sheet.Rules[1].Selector)
	}
	if sheet.Rules[2].Selector.Type != IDSelector || sheet.Rules[2].Selector.Value != "header" {
		t.Errorf("rule 2: unexpected selector %+v", sheet.Rules[2].Selector)
	}
	if sheet.Rules[0].Declarations["height"] != "40px" {
		t.Errorf("rule 0: expected height 40px, got %q", sheet.Rules[0].Declarations["height"])
	}
	if sheet.Rules[2].Declarations["display"] != "block" {
		t.Errorf("rule 2: expected display block, got %q", sheet.Rules[2].Declarations["display"])
	}
}

func TestParseSkipsMalformedRules(t *testing.T) {
	sheet, err := Parse(`div { height: 20px; } garbage p { height: 10px }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// "garbage p" parses as a (never-matching) element selector; the point
	// is that parsing doesn't fail and valid rules survive.
	if len(sheet.Rules) == 0 {
		t.Fatal("expected at least the valid rule to survive")
	}
	if sheet.Rules[0].Declarations["height"] != "20px" {
		t.Errorf("expected first rule height 20px, got %q", sheet.Rules[0].Declarations["height"])
	}
}

func TestParseStripsComments(t *testing.T) {
	sheet, err := Parse(`/* heading */ h1 { height: 32px; /* tall */ }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].Declarations["height"] != "32px" {
		t.Errorf("expected height 32px, got %q", sheet.Rules[0].Declarations["height"])
	}
}

func TestSelectorMatches(t *testing.T) {
	div := &html.Node{
		Type:       html.ElementNode,
		TagName:    "div",
		Attributes: map[string]string{"id": "main", "class": "card wide"},
	}
	tests := []struct {
		sel  Selector
		want bool
	}{
		{Selector{Type: ElementSelector, Value: "div"}, true},
		{Selector{Type: ElementSelector, Value: "p"}, false},
		{Selector{Type: ClassSelector, Value: "card"}, true},
		{Selector{Type: ClassSelector, Value: "narrow"}, false},
		{Selector{Type: IDSelector, Value: "main"}, true},
		{Selector{Type: IDSelector, Value: "other"}, false},
	}
	for _, tt := range tests {
		if got := tt.sel.Matches(div); got != tt.want {
			t.Errorf("selector %+v: expected %v, got %v", tt.sel, tt.want, got)
		}
	}
}

func TestDeclarationsForMergesLaterRulesWin(t *testing.T) {
	sheet, err := Parse(`div { height: 10px; display: block } .big { height: 99px }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	div := &html.Node{
		Type:       html.ElementNode,
		TagName:    "div",
		Attributes: map[string]string{"class": "big"},
	}
	decls := sheet.DeclarationsFor(div)
	if decls["height"] != "99px" {
		t.Errorf("later rule should win: expected 99px, got %q", decls["height"])
	}
	if decls["display"] != "block" {
		t.Errorf("expected display block to survive merge, got %q", decls["display"])
	}

	text := &html.Node{Type: html.TextNode, Text: "hi"}
	if sheet.DeclarationsFor(text) != nil {
		t.Error("text nodes should not match any rule")
	}
}
