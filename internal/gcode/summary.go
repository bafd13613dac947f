package gcode

// Summary aggregates statistics over a parsed program.
type Summary struct {
	Lines        int          `json:"lines"`
	Commands     int          `json:"commands"`
	Rapid        int          `json:"rapid"`
	Linear       int          `json:"linear"`
	Arcs         int          `json:"arcs"`
	PenChanges   int          `json:"pen_changes"`
	DrawDistance float64      `json:"draw_distance"`
	TravelDist   float64      `json:"travel_distance"`
	MaxFeedRate  float64      `json:"max_feed_rate"`
	Bounds       *BoundingBox `json:"bounds"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Summarize computes a Summary. A move counts as drawing when the pen is down at both ends.
func (p Program) Summarize() Summary {
	s := Summary{
		Lines:    p.Lines,
		Commands: len(p.Commands),
		Warnings: p.Warnings,
	}
	for _, cmd := range p.Commands {
		switch {
		case cmd.Mode.IsArc():
			s.Arcs++
		case cmd.Mode == ModeLinear:
			s.Linear++
		default:
			s.Rapid++
		}
		if cmd.FeedRate > s.MaxFeedRate {
			s.MaxFeedRate = cmd.FeedRate
		}
		if p.IsPenDown(cmd.From.Z) != p.IsPenDown(cmd.To.Z) {
			s.PenChanges++
		}
		length := cmd.Length()
		if p.IsPenDown(cmd.From.Z) && p.IsPenDown(cmd.To.Z) {
			s.DrawDistance += length
		} else {
			s.TravelDist += length
		}
	}
	if box, ok := p.Bounds(); ok {
		s.Bounds = &box
	}
	return s
}
