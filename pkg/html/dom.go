package html

type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Node is one node in a document tree. Nodes are mutated only from the
// script task's goroutine; the layout task sees them through addresses it
// hands back in query replies and never dereferences them after the
// prepare-to-exit handshake.
type Node struct {
	Type       NodeType
	TagName    string
	Attributes map[string]string
	Text       string
	Children   []*Node
	Parent     *Node

	// Hovered is the :hover flag maintained by pointer-move dispatch.
	Hovered bool
}

func (n *Node) GetAttribute(name string) (string, bool) {
	if n.Attributes == nil {
		return "", false
	}
	val, ok := n.Attributes[name]
	return val, ok
}

// ID returns the node's id attribute, or "".
func (n *Node) ID() string {
	id, _ := n.GetAttribute("id")
	return id
}

func (n *Node) IsElement() bool {
	return n.Type == ElementNode
}

// AddChild adds a child node and sets up the parent relationship.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// AppendText creates a text node and adds it as a child.
func (n *Node) AppendText(text string) {
	if text == "" {
		return
	}
	n.Children = append(n.Children, &Node{
		Type:   TextNode,
		Text:   text,
		Parent: n,
	})
}

// RemoveChild removes the given child from this node's children list,
// clears its parent pointer, and returns the removed child.
// Returns nil if child is not found.
func (n *Node) RemoveChild(child *Node) *Node {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return child
		}
	}
	return nil
}

// TraversePreorder visits n and every descendant in document order.
// Returning false from visit stops the walk.
func (n *Node) TraversePreorder(visit func(*Node) bool) bool {
	if !visit(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.TraversePreorder(visit) {
			return false
		}
	}
	return true
}

// ElementAncestorOrSelf walks upward from n (inclusive) and returns the
// nearest element node, or nil if there is none.
func (n *Node) ElementAncestorOrSelf() *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.IsElement() {
			return cur
		}
	}
	return nil
}

// SetHoverState flips the :hover flag on the node.
func (n *Node) SetHoverState(hovered bool) {
	n.Hovered = hovered
}

// Document is a parsed HTML document plus the style and script payloads
// discovered while parsing.
type Document struct {
	Root *Node
	URL  string

	// Stylesheets holds the text of each <style> element in document order.
	Stylesheets []string
	// Scripts holds the text of each inline <script> in document order.
	Scripts []string
	// ExternalScripts holds the src of each <script src=...> in document
	// order, unresolved.
	ExternalScripts []string
}

func NewDocument() *Document {
	return &Document{
		Root: &Node{
			Type:     ElementNode,
			TagName:  "document",
			Children: make([]*Node, 0),
		},
		Stylesheets: make([]string, 0),
		Scripts:     make([]string, 0),
	}
}

// DocumentElement returns the root element of the document (normally
// <html>), or nil if the document has no element children.
func (d *Document) DocumentElement() *Node {
	if d.Root == nil {
		return nil
	}
	for _, c := range d.Root.Children {
		if c.IsElement() {
			return c
		}
	}
	return nil
}

// GetElementById returns the first element in document order whose id
// attribute equals id, or nil.
func (d *Document) GetElementById(id string) *Node {
	if d.Root == nil || id == "" {
		return nil
	}
	var found *Node
	d.Root.TraversePreorder(func(n *Node) bool {
		if n.IsElement() && n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAnchorByName returns the first <a name="..."> element matching name,
// or nil. Used as the fallback for fragment navigation.
func (d *Document) FindAnchorByName(name string) *Node {
	if d.Root == nil || name == "" {
		return nil
	}
	var found *Node
	d.Root.TraversePreorder(func(n *Node) bool {
		if n.IsElement() && n.TagName == "a" {
			if v, ok := n.GetAttribute("name"); ok && v == name {
				found = n
				return false
			}
		}
		return true
	})
	return found
}
