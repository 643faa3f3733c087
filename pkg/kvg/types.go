package kvg

import "math"

// Document represents a parsed stroke-order diagram.
type Document struct {
	Width         int
	Height        int
	ViewBox       ViewBox
	StrokePaths   StrokeContainer
	StrokeNumbers NumberContainer
}

// ViewBox is the viewBox attribute of the root element.
type ViewBox struct {
	X, Y, Width, Height int
}

// Style is a parsed style attribute: CSS-like property name -> value.
type Style map[string]string

// StrokeContainer is the first group under the root element. It holds
// exactly one root stroke group.
type StrokeContainer struct {
	ID    string
	Style Style
	Root  *Group
}

// Node is a child of a stroke group: either a *Group or a *Stroke.
type Node interface {
	node()
}

// Group is a named collection of strokes and nested groups. Optional
// attributes are nil when absent.
type Group struct {
	ID          string
	Element     *string
	Original    *string
	Position    *Position
	Variant     *bool
	Partial     *bool
	Part        *int
	Number      *int
	Radical     *Radical
	Phon        *string
	TradForm    *string
	RadicalForm *string
	Children    []Node
}

// Stroke is a single pen stroke (a <path> element).
type Stroke struct {
	ID   string
	Type *string // kvg:type
	Path string  // path data, opaque apart from its leading move-to
}

func (*Group) node()  {}
func (*Stroke) node() {}

// NumberContainer is the second group under the root element, holding
// the stroke number labels.
type NumberContainer struct {
	ID     string
	Style  Style
	Labels []Label
}

// Label is a stroke number (a <text> element).
type Label struct {
	Value     int
	Transform Matrix
}

// Matrix is a 2D affine transform matrix(a,b,c,d,e,f).
type Matrix [6]float64

// Translation returns the (e, f) components of the matrix.
func (m Matrix) Translation() Point {
	return Point{X: m[4], Y: m[5]}
}

// Point is a 2D coordinate.
type Point struct {
	X, Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Position is the kvg:position attribute of a group.
type Position string

const (
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionNyo    Position = "nyo"
	PositionTare   Position = "tare"
	PositionKamae  Position = "kamae"
	PositionKamae1 Position = "kamae1"
	PositionKamae2 Position = "kamae2"
)

var positions = []Position{
	PositionLeft, PositionRight, PositionTop, PositionBottom,
	PositionNyo, PositionTare, PositionKamae, PositionKamae1, PositionKamae2,
}

// Radical is the kvg:radical attribute of a group.
type Radical string

const (
	RadicalGeneral     Radical = "general"
	RadicalNelson      Radical = "nelson"
	RadicalTraditional Radical = "tradit"
)

var radicals = []Radical{RadicalGeneral, RadicalNelson, RadicalTraditional}

// Kanji returns the element label of the root stroke group, or "NA".
func (d *Document) Kanji() string {
	if d.StrokePaths.Root != nil && d.StrokePaths.Root.Element != nil {
		return *d.StrokePaths.Root.Element
	}
	return "NA"
}

// Groups returns the stroke groups of the document in pre-order, the root
// stroke group first.
func (d *Document) Groups() []*Group {
	var groups []*Group
	Walk(d.StrokePaths.Root, func(n Node) {
		if g, ok := n.(*Group); ok {
			groups = append(groups, g)
		}
	})
	return groups
}

// Strokes returns all strokes of the document in pre-order.
func (d *Document) Strokes() []*Stroke {
	var strokes []*Stroke
	Walk(d.StrokePaths.Root, func(n Node) {
		if s, ok := n.(*Stroke); ok {
			strokes = append(strokes, s)
		}
	})
	return strokes
}

// Walk calls fn for n and then for each of its descendants, depth-first,
// in document order.
func Walk(n Node, fn func(Node)) {
	switch n := n.(type) {
	case *Group:
		if n == nil {
			return
		}
		fn(n)
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *Stroke:
		fn(n)
	}
}
