package js

import (
	"strings"

	"plover/pkg/html"

	"github.com/dop251/goja"
)

// registerDocument sets up the global `document` object. The binding
// surface is deliberately small: lookup, text mutation, attributes, and
// event listeners. Mutation notifies the script task through the
// PostContentChanged hook so it can damage the page and reflow.
func (c *PageContext) registerDocument() {
	vm := c.vm
	doc := c.doc

	docObj := vm.NewObject()
	docObj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		node := doc.GetElementById(call.Arguments[0].String())
		if node == nil {
			return goja.Null()
		}
		return c.elementProxy(node)
	})
	docObj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue([]goja.Value{})
		}
		tag := strings.ToLower(call.Arguments[0].String())
		var out []goja.Value
		if doc.Root != nil {
			doc.Root.TraversePreorder(func(n *html.Node) bool {
				if n.IsElement() && n.TagName == tag {
					out = append(out, c.elementProxy(n))
				}
				return true
			})
		}
		return vm.ToValue(out)
	})
	docObj.DefineAccessorProperty("documentElement",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if root := doc.DocumentElement(); root != nil {
				return c.elementProxy(root)
			}
			return goja.Null()
		}),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	vm.Set("document", docObj)
}

// elementProxy returns the JS object for a node, cached so identity
// comparisons (===) work across lookups.
func (c *PageContext) elementProxy(n *html.Node) *goja.Object {
	if obj, ok := c.elements[n]; ok {
		return obj
	}
	vm := c.vm
	obj := vm.NewObject()
	c.elements[n] = obj

	obj.Set("tagName", strings.ToUpper(n.TagName))
	obj.Set("id", n.ID())

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		if v, ok := n.GetAttribute(strings.ToLower(call.Arguments[0].String())); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]string)
		}
		n.Attributes[strings.ToLower(call.Arguments[0].String())] = call.Arguments[1].String()
		c.contentChanged()
		return goja.Undefined()
	})

	obj.DefineAccessorProperty("textContent",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			var sb strings.Builder
			n.TraversePreorder(func(d *html.Node) bool {
				if d.Type == html.TextNode {
					sb.WriteString(d.Text)
				}
				return true
			})
			return vm.ToValue(sb.String())
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			text := ""
			if len(call.Arguments) > 0 {
				text = call.Arguments[0].String()
			}
			for _, child := range append([]*html.Node(nil), n.Children...) {
				n.RemoveChild(child)
			}
			n.AppendText(text)
			c.contentChanged()
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		name := call.Arguments[0].String()
		fn, ok := goja.AssertFunction(call.Arguments[1])
		if !ok {
			return goja.Undefined()
		}
		listeners := c.nodeListeners[n]
		if listeners == nil {
			listeners = make(map[string][]goja.Callable)
			c.nodeListeners[n] = listeners
		}
		listeners[name] = append(listeners[name], fn)
		return goja.Undefined()
	})

	return obj
}

func (c *PageContext) contentChanged() {
	if c.hooks.PostContentChanged != nil {
		c.hooks.PostContentChanged()
	}
}
