package gcode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPenUpZ is the Z height at or below which the pen is considered lifted.
// Higher Z values draw.
const DefaultPenUpZ = 0.5

// MaxMagnitude bounds every numeric word and every resulting position. Larger values are
// dropped with a warning so that distances and bounds stay finite.
const MaxMagnitude = 1e9

var motionWord = regexp.MustCompile(`^G0*([0-3])(\.|$)`)

// Parser converts G-code text into Commands.
type Parser struct {
	penUpZ float64
}

// NewParser creates a Parser using penUpZ as the pen threshold.
func NewParser(penUpZ float64) *Parser {
	return &Parser{penUpZ: penUpZ}
}

// Program is the parsed form of a G-code document.
type Program struct {
	Lines    int       `json:"lines"`
	Commands []Command `json:"commands"`
	Warnings []string  `json:"warnings,omitempty"`
	PenUpZ   float64   `json:"pen_up_z"`
}

type words struct {
	x, y, z, i, j, r, f *float64
}

// Parse walks gcode line by line. It never fails: unreadable words are skipped and reported in
// Program.Warnings.
func (p *Parser) Parse(gcode string) Program {
	prog := Program{PenUpZ: p.penUpZ, Commands: []Command{}}
	if gcode == "" {
		return prog
	}
	lines := strings.Split(gcode, "\n")
	prog.Lines = len(lines)

	mode := ModeRapid
	var pos Point
	absolute := true
	var feed float64

	for idx, raw := range lines {
		lineNo := idx + 1
		line := strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)

		if hasToken(tokens, "G90") {
			absolute = true
			continue
		}
		if hasToken(tokens, "G91") {
			absolute = false
			continue
		}

		for _, tok := range tokens {
			if m := motionWord.FindStringSubmatch(tok); m != nil {
				mode = Mode("G" + m[1])
				break
			}
		}

		w, warns := readWords(tokens, lineNo)
		prog.Warnings = append(prog.Warnings, warns...)

		if w.f != nil {
			feed = *w.f
		}
		if w.x == nil && w.y == nil && w.z == nil && !mode.IsArc() {
			continue
		}

		cmd := Command{Line: lineNo, Mode: mode, From: pos, FeedRate: feed}
		next := pos
		if w.x != nil {
			next.X = axis(absolute, pos.X, *w.x)
		}
		if w.y != nil {
			next.Y = axis(absolute, pos.Y, *w.y)
		}
		if w.z != nil {
			next.Z = axis(absolute, pos.Z, *w.z)
		}

		if !inRange(next) {
			prog.Warnings = append(prog.Warnings,
				fmt.Sprintf("line %d: move exceeds %g, skipped", lineNo, MaxMagnitude))
			continue
		}

		penOnly := w.z != nil && w.x == nil && w.y == nil
		if mode.IsArc() && !penOnly {
			cmd.Clockwise = mode == ModeArcCW
			switch {
			case w.i != nil && w.j != nil:
				cmd.Arc = ArcCenter
				cmd.I, cmd.J = *w.i, *w.j
			case w.r != nil:
				cmd.Arc = ArcRadius
				cmd.R = *w.r
			default:
				prog.Warnings = append(prog.Warnings,
					fmt.Sprintf("line %d: arc without I/J or R, treated as linear move", lineNo))
				cmd.Mode = ModeLinear
				cmd.Clockwise = false
			}
		}

		pos = next
		cmd.To = pos
		prog.Commands = append(prog.Commands, cmd)
	}
	return prog
}

// IsPenDown reports whether z is a drawing height.
func (p Program) IsPenDown(z float64) bool {
	return z > p.PenUpZ
}

// Bounds returns the XY bounding box of all commands. ok is false for a program without commands.
func (p Program) Bounds() (BoundingBox, bool) {
	if len(p.Commands) == 0 {
		return BoundingBox{}, false
	}
	box := newEmptyBox()
	for _, cmd := range p.Commands {
		box.include(cmd.From.X, cmd.From.Y)
		box.include(cmd.To.X, cmd.To.Y)
		if !cmd.Mode.IsArc() {
			continue
		}
		switch cmd.Arc {
		case ArcCenter:
			box.includeCircle(cmd.From.X+cmd.I, cmd.From.Y+cmd.J, math.Hypot(cmd.I, cmd.J))
		case ArcRadius:
			// Conservative: circle of |R| around the chord midpoint.
			midX := (cmd.From.X + cmd.To.X) / 2
			midY := (cmd.From.Y + cmd.To.Y) / 2
			box.includeCircle(midX, midY, math.Abs(cmd.R))
		}
	}
	return box, true
}

func readWords(tokens []string, lineNo int) (words, []string) {
	var w words
	var warns []string
	targets := map[byte]**float64{
		'X': &w.x, 'Y': &w.y, 'Z': &w.z,
		'I': &w.i, 'J': &w.j, 'R': &w.r, 'F': &w.f,
	}
	for _, tok := range tokens {
		dst, ok := targets[tok[0]]
		if !ok || *dst != nil {
			continue
		}
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			warns = append(warns, fmt.Sprintf("line %d: unreadable word %q", lineNo, tok))
			continue
		}
		if math.Abs(v) > MaxMagnitude {
			warns = append(warns, fmt.Sprintf("line %d: word %q out of range", lineNo, tok))
			continue
		}
		*dst = &v
	}
	return w, warns
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func inRange(pt Point) bool {
	return math.Abs(pt.X) <= MaxMagnitude && math.Abs(pt.Y) <= MaxMagnitude && math.Abs(pt.Z) <= MaxMagnitude
}

func axis(absolute bool, current, value float64) float64 {
	if absolute {
		return value
	}
	return current + value
}
