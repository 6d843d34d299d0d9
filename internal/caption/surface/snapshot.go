// Package surface applies snapshots of the editable caption surface to an
// alignment store.
//
// A snapshot is a flat list of regions supplied by whatever renders the
// caption. Addressable regions carry the index of the unit they display;
// everything else is free text the user typed between or around them.
package surface

import "strings"

// EventKind tells the observer what triggered a pass.
type EventKind string

const (
	// EventInput is a keystroke or paste inside the surface.
	EventInput EventKind = "input"
	// EventBlur is emitted when the surface loses focus; always structural.
	EventBlur EventKind = "blur"
)

// Node is a text node inside a region. Marker nodes are the non-editable
// index glyphs and never count as content.
type Node struct {
	Text     string `json:"text,omitempty"`
	Marker   bool   `json:"marker,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// Region is one region of the edit surface.
type Region struct {
	Index *int   `json:"index,omitempty"` // nil for unaddressed text
	Text  string `json:"text,omitempty"`
	Nodes []Node `json:"nodes,omitempty"`
}

// Addressable reports whether the region is bound to a unit index.
func (r Region) Addressable() bool {
	return r.Index != nil
}

// Content returns the region's text with nested nodes concatenated in order,
// marker nodes excluded, trimmed.
func (r Region) Content() string {
	return strings.TrimSpace(r.rawContent())
}

// rawContent is the region's text with surrounding whitespace kept, so that
// neighbouring stray regions can be joined without losing word breaks.
func (r Region) rawContent() string {
	var sb strings.Builder
	sb.WriteString(r.Text)
	for _, n := range r.Nodes {
		writeNode(&sb, n)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	if n.Marker {
		return
	}
	sb.WriteString(n.Text)
	for _, c := range n.Children {
		writeNode(sb, c)
	}
}

// Snapshot is the post-edit state of the whole surface.
type Snapshot struct {
	Regions []Region `json:"regions"`
}

// Event is a single edit notification from the surface.
type Event struct {
	Kind     EventKind `json:"kind"`
	Focus    *int      `json:"focus,omitempty"` // region index holding the caret, when known
	Snapshot Snapshot  `json:"snapshot"`
}

// At returns an addressable region for index.
func At(index int, text string) Region {
	i := index
	return Region{Index: &i, Text: text}
}

// Stray returns an unaddressed region.
func Stray(text string) Region {
	return Region{Text: text}
}
