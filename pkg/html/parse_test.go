package html

import "testing"

func TestParseBasicStructure(t *testing.T) {
	doc, err := Parse(`<html><body><div id="main"><p>hello</p></div></body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.DocumentElement()
	if root == nil || root.TagName != "html" {
		t.Fatalf("expected <html> document element, got %+v", root)
	}
	main := doc.GetElementById("main")
	if main == nil || main.TagName != "div" {
		t.Fatalf("expected <div id=main>, got %+v", main)
	}
	if len(main.Children) != 1 || main.Children[0].TagName != "p" {
		t.Fatalf("expected one <p> child, got %+v", main.Children)
	}
	p := main.Children[0]
	if len(p.Children) != 1 || p.Children[0].Type != TextNode || p.Children[0].Text != "hello" {
		t.Errorf("expected text child 'hello', got %+v", p.Children)
	}
}

func TestParseCollectsStylesAndScripts(t *testing.T) {
	doc, err := Parse(`<html><head>
		<style>p { height: 40px; }</style>
		<script>var x = 1;</script>
		<script src="app.js"></script>
	</head><body><p>hi</p></body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Stylesheets) != 1 {
		t.Fatalf("expected 1 stylesheet, got %d", len(doc.Stylesheets))
	}
	if doc.Stylesheets[0] != "p { height: 40px; }" {
		t.Errorf("unexpected stylesheet text: %q", doc.Stylesheets[0])
	}
	if len(doc.Scripts) != 1 {
		t.Fatalf("expected 1 inline script, got %d", len(doc.Scripts))
	}
	if doc.Scripts[0] != "var x = 1;" {
		t.Errorf("unexpected script text: %q", doc.Scripts[0])
	}
	if len(doc.ExternalScripts) != 1 || doc.ExternalScripts[0] != "app.js" {
		t.Errorf("external scripts = %v, want [app.js]", doc.ExternalScripts)
	}
}

func TestParseDropsWhitespaceAndComments(t *testing.T) {
	doc, err := Parse(`<html><body>
		<!-- a comment -->
		<div>   </div>
	</body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var divs, texts int
	doc.Root.TraversePreorder(func(n *Node) bool {
		if n.IsElement() && n.TagName == "div" {
			divs++
		}
		if n.Type == TextNode {
			texts++
		}
		return true
	})
	if divs != 1 {
		t.Errorf("expected 1 div, got %d", divs)
	}
	if texts != 0 {
		t.Errorf("expected no text nodes, got %d", texts)
	}
}

func TestParseLowercasesTagsAndAttributes(t *testing.T) {
	doc, err := Parse(`<html><body><DIV ID="Upper"></DIV></body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	n := doc.GetElementById("Upper")
	if n == nil {
		t.Fatal("expected to find element by id")
	}
	if n.TagName != "div" {
		t.Errorf("tag should be lowercased, got %q", n.TagName)
	}
}
