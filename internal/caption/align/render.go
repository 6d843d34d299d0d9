package align

import (
	"fmt"
	"html"
	"strings"
)

// Palette is the cyclic set of marker colors, one per index modulo its size.
var Palette = [8]string{
	"#3B82F6", "#10B981", "#F59E0B", "#EC4899",
	"#8B5CF6", "#6366F1", "#EF4444", "#F97316",
}

// MarkerColor returns the deterministic marker color for a unit index.
func MarkerColor(index int) string {
	if index < 0 {
		index = -index
	}
	return Palette[index%len(Palette)]
}

// Region is one addressable region of the rendered edit surface.
type Region struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Marker string `json:"marker"` // single glyph shown after the region
	Color  string `json:"color"`
	Dirty  bool   `json:"dirty"`
}

// Renderer projects units into addressable regions.
type Renderer interface {
	Render(units []Unit) []Region
}

// MarkerRenderer renders one region per unit with a 1-based marker.
type MarkerRenderer struct{}

func (MarkerRenderer) Render(units []Unit) []Region {
	regions := make([]Region, len(units))
	for i, u := range units {
		regions[i] = Region{
			Index:  u.Index,
			Text:   u.Current,
			Marker: fmt.Sprintf("%d", u.Index+1),
			Color:  MarkerColor(u.Index),
			Dirty:  u.Dirty(),
		}
	}
	return regions
}

// RenderHTML produces contenteditable markup for the regions. Markers are
// marked non-editable so the surface extraction rule can skip them.
func RenderHTML(regions []Region) string {
	var sb strings.Builder
	for i, r := range regions {
		class := "sentence"
		if r.Dirty {
			class += " modified"
		}
		fmt.Fprintf(&sb, `<span class="%s" data-sentence-index="%d">%s</span>`,
			class, r.Index, html.EscapeString(r.Text))
		fmt.Fprintf(&sb, `<span class="sentence-marker" contenteditable="false" style="background-color:%s">%s</span>`,
			r.Color, r.Marker)
		if i < len(regions)-1 {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}
