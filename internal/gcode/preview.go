package gcode

import "strings"

const (
	// PreviewLines is the number of leading lines echoed back for a submission.
	PreviewLines = 5
	// PreviewSuffix is appended to every non-empty preview, even short ones.
	PreviewSuffix = "..."
	// EmptyPreview is returned when no G-code was supplied.
	EmptyPreview = "No G-code provided"
)

// Preview returns the first PreviewLines lines of gcode joined by "\n" plus PreviewSuffix.
// Lines are split on "\n" only; carriage returns are kept verbatim.
func Preview(gcode string) string {
	if gcode == "" {
		return EmptyPreview
	}
	lines := strings.SplitN(gcode, "\n", PreviewLines+1)
	if len(lines) > PreviewLines {
		lines = lines[:PreviewLines]
	}
	return strings.Join(lines, "\n") + PreviewSuffix
}

// LineCount reports how many "\n"-separated lines gcode holds. The empty string has zero lines.
func LineCount(gcode string) int {
	if gcode == "" {
		return 0
	}
	return strings.Count(gcode, "\n") + 1
}
