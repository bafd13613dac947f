package gcode

import "math"

// Mode is the active motion mode of a command.
type Mode string

// Motion modes understood by the parser.
const (
	ModeRapid  Mode = "G0"
	ModeLinear Mode = "G1"
	ModeArcCW  Mode = "G2"
	ModeArcCCW Mode = "G3"
)

// IsArc reports whether the mode draws a circular arc.
func (m Mode) IsArc() bool {
	return m == ModeArcCW || m == ModeArcCCW
}

// ArcFormat records how an arc's geometry was specified.
type ArcFormat string

// Arc formats.
const (
	ArcNone   ArcFormat = ""
	ArcCenter ArcFormat = "ij"
	ArcRadius ArcFormat = "r"
)

// Point is an absolute machine position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Command is a single move produced by the parser.
type Command struct {
	Line      int       `json:"line"`
	Mode      Mode      `json:"mode"`
	From      Point     `json:"from"`
	To        Point     `json:"to"`
	FeedRate  float64   `json:"feed_rate"`
	Clockwise bool      `json:"clockwise,omitempty"`
	Arc       ArcFormat `json:"arc,omitempty"`
	I         float64   `json:"i,omitempty"`
	J         float64   `json:"j,omitempty"`
	R         float64   `json:"r,omitempty"`
}

// PenOnly reports whether the command only moves the Z axis.
func (c Command) PenOnly() bool {
	return c.From.X == c.To.X && c.From.Y == c.To.Y && c.From.Z != c.To.Z
}

// Length returns the XY path length of the command. Arcs are measured along the curve.
func (c Command) Length() float64 {
	chord := math.Hypot(c.To.X-c.From.X, c.To.Y-c.From.Y)
	if !c.Mode.IsArc() {
		return chord
	}
	switch c.Arc {
	case ArcCenter:
		return c.centerArcLength()
	case ArcRadius:
		return radiusArcLength(chord, c.R)
	default:
		return chord
	}
}

func (c Command) centerArcLength() float64 {
	radius := math.Hypot(c.I, c.J)
	if radius == 0 {
		return 0
	}
	cx, cy := c.From.X+c.I, c.From.Y+c.J
	start := math.Atan2(c.From.Y-cy, c.From.X-cx)
	end := math.Atan2(c.To.Y-cy, c.To.X-cx)
	sweep := end - start
	if c.Clockwise {
		sweep = start - end
	}
	for sweep <= 0 {
		sweep += 2 * math.Pi
	}
	return radius * sweep
}

// radiusArcLength follows the R-word convention: a negative radius selects the larger arc.
func radiusArcLength(chord, r float64) float64 {
	radius := math.Abs(r)
	if radius == 0 || chord > 2*radius {
		return chord
	}
	angle := 2 * math.Asin(chord/(2*radius))
	if r < 0 {
		angle = 2*math.Pi - angle
	}
	return radius * angle
}

// BoundingBox is the XY extent of a program.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Width returns MaxX-MinX.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY-MinY.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

func newEmptyBox() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1),
		MaxX: math.Inf(-1),
		MinY: math.Inf(1),
		MaxY: math.Inf(-1),
	}
}

func (b *BoundingBox) include(x, y float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MaxX = math.Max(b.MaxX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxY = math.Max(b.MaxY, y)
}

func (b *BoundingBox) includeCircle(cx, cy, radius float64) {
	b.include(cx-radius, cy)
	b.include(cx+radius, cy)
	b.include(cx, cy-radius)
	b.include(cx, cy+radius)
}
