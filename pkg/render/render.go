// Package render paints a layout snapshot onto a raster surface. It is a
// display consumer: it asks layout for its box list and draws, never
// touching the DOM beyond reading node text and attributes.
package render

import (
	"image"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"plover/pkg/css"
	"plover/pkg/html"
	"plover/pkg/layout"
)

type Renderer struct {
	context *gg.Context
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{context: gg.NewContext(width, height)}
}

// Render paints the box list in document order onto a white surface.
// Styling comes from the same stylesheets layout used, so the paint
// matches the geometry.
func (r *Renderer) Render(boxes []layout.Box, sheets []*css.Stylesheet) {
	r.context.SetRGB(1, 1, 1)
	r.context.Clear()

	for _, box := range boxes {
		r.drawBox(box, sheets)
	}
}

func (r *Renderer) drawBox(box layout.Box, sheets []*css.Stylesheet) {
	decls := declarationsFor(box.Node, sheets)

	if bg, ok := decls["background-color"]; ok {
		if cr, cg, cb, ok := parseColor(bg); ok {
			r.context.SetRGB(cr, cg, cb)
			r.context.DrawRectangle(box.Rect.X, box.Rect.Y, box.Rect.Width, box.Rect.Height)
			r.context.Fill()
		}
	}

	if box.Node.Type == html.TextNode && strings.TrimSpace(box.Node.Text) != "" {
		cr, cg, cb := 0.0, 0.0, 0.0
		if fg, ok := decls["color"]; ok {
			if pr, pg, pb, ok := parseColor(fg); ok {
				cr, cg, cb = pr, pg, pb
			}
		}
		r.context.SetRGB(cr, cg, cb)
		r.context.DrawStringAnchored(box.Node.Text, box.Rect.X, box.Rect.Y+box.Rect.Height/2, 0, 0.35)
	}
}

// declarationsFor merges declarations from every sheet, later sheets
// winning, the same way layout resolves them.
func declarationsFor(n *html.Node, sheets []*css.Stylesheet) map[string]string {
	merged := make(map[string]string)
	target := n
	if n != nil && n.Type == html.TextNode {
		target = n.Parent
	}
	if target == nil {
		return merged
	}
	for _, sheet := range sheets {
		for k, v := range sheet.DeclarationsFor(target) {
			merged[k] = v
		}
	}
	return merged
}

// Image returns the rendered surface.
func (r *Renderer) Image() image.Image {
	return r.context.Image()
}

// SavePNG writes the surface to a file.
func (r *Renderer) SavePNG(path string) error {
	return r.context.SavePNG(path)
}

var namedColors = map[string][3]float64{
	"black":  {0, 0, 0},
	"white":  {1, 1, 1},
	"red":    {1, 0, 0},
	"green":  {0, 0.5, 0},
	"blue":   {0, 0, 1},
	"yellow": {1, 1, 0},
	"gray":   {0.5, 0.5, 0.5},
	"grey":   {0.5, 0.5, 0.5},
	"silver": {0.75, 0.75, 0.75},
}

// parseColor understands named colors plus #rgb and #rrggbb hex forms.
func parseColor(s string) (r, g, b float64, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, found := namedColors[s]; found {
		return c[0], c[1], c[2], true
	}
	if !strings.HasPrefix(s, "#") {
		return 0, 0, 0, false
	}
	hex := s[1:]
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return float64(v>>16&0xff) / 255, float64(v>>8&0xff) / 255, float64(v&0xff) / 255, true
}
