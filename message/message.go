package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-spatial/geom"
)

// ErrUnknownVariant is returned by consumers that are handed a value that is
// not one of the six message variants.
var ErrUnknownVariant = errors.New("unknown message variant")

// Message is a single event of a geometry stream. The set of implementations
// is closed: only the variants declared in this package satisfy it.
type Message interface {
	Type() string // Type returns the variant name of this Message

	isMessage()
}

type (
	// EndPoint marks the end of a point sequence.
	EndPoint struct{}
	// PolygonStart opens a polygon.
	PolygonStart struct{}
	// LineStart opens a line.
	LineStart struct{}
	// LineEnd closes a line.
	LineEnd struct{}
	// PolygonEnd closes a polygon.
	PolygonEnd struct{}
)

// Point carries a coordinate and an unconstrained marker byte.
type Point struct {
	Coord  geom.Point
	Marker uint8
}

// NewPoint is a convenience constructor for a Point at (x, y).
func NewPoint(x, y float64, marker uint8) Point {
	return Point{Coord: geom.Point{x, y}, Marker: marker}
}

func (EndPoint) Type() string     { return "EndPoint" }
func (PolygonStart) Type() string { return "PolygonStart" }
func (LineStart) Type() string    { return "LineStart" }
func (Point) Type() string        { return "Point" }
func (LineEnd) Type() string      { return "LineEnd" }
func (PolygonEnd) Type() string   { return "PolygonEnd" }

func (EndPoint) isMessage()     {}
func (PolygonStart) isMessage() {}
func (LineStart) isMessage()    {}
func (Point) isMessage()        {}
func (LineEnd) isMessage()      {}
func (PolygonEnd) isMessage()   {}

func (m EndPoint) String() string     { return m.Type() }
func (m PolygonStart) String() string { return m.Type() }
func (m LineStart) String() string    { return m.Type() }
func (m LineEnd) String() string      { return m.Type() }
func (m PolygonEnd) String() string   { return m.Type() }

func (m Point) String() string {
	return fmt.Sprintf("Point(x=%s, y=%s, marker=%d)",
		formatFloat(m.Coord.X()), formatFloat(m.Coord.Y()), m.Marker)
}

// Variants returns one zero-valued instance of every variant, in declaration order.
func Variants() []Message {
	return []Message{
		EndPoint{},
		PolygonStart{},
		LineStart{},
		Point{},
		LineEnd{},
		PolygonEnd{},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
