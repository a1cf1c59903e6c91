package html

import (
	"fmt"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Parse parses an HTML document, collecting <style> and inline <script>
// payloads along the way. The returned tree contains element and text
// nodes only; comments, doctypes, and inter-tag whitespace are dropped.
func Parse(content string) (*Document, error) {
	root, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	doc := NewDocument()
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		convert(doc, doc.Root, c)
	}
	return doc, nil
}

// convert maps one x/net/html node (and its subtree) into our DOM,
// appending to parent. Style and script element bodies are captured on the
// document instead of becoming text children.
func convert(doc *Document, parent *Node, src *xhtml.Node) {
	switch src.Type {
	case xhtml.ElementNode:
		tag := strings.ToLower(src.Data)
		switch tag {
		case "style":
			doc.Stylesheets = append(doc.Stylesheets, textContent(src))
			return
		case "script":
			// External scripts carry a src attribute and no usable body.
			if ref := attrValue(src, "src"); ref != "" {
				doc.ExternalScripts = append(doc.ExternalScripts, ref)
			} else {
				doc.Scripts = append(doc.Scripts, textContent(src))
			}
			return
		}
		n := &Node{
			Type:     ElementNode,
			TagName:  tag,
			Children: make([]*Node, 0),
		}
		for _, a := range src.Attr {
			if n.Attributes == nil {
				n.Attributes = make(map[string]string)
			}
			n.Attributes[strings.ToLower(a.Key)] = a.Val
		}
		parent.AddChild(n)
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			convert(doc, n, c)
		}
	case xhtml.TextNode:
		text := strings.TrimSpace(src.Data)
		if text != "" {
			parent.AppendText(text)
		}
	default:
		// Comments, doctypes: skip, but keep descending in case the parser
		// parked elements under them.
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			convert(doc, parent, c)
		}
	}
}

func textContent(n *xhtml.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func attrValue(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
