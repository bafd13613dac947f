// Package gcode turns plotter G-code text into something the web front door can reason about.
//
// Two levels are offered:
//   - Preview builds the short confirmation string echoed back to the browser after a submission.
//     It never inspects the instructions themselves.
//   - Parser walks the program line by line and produces straight and arc Commands with absolute
//     endpoints, so callers can compute the drawing's bounding box and simple statistics.
//
// Nothing in this package drives a machine: positions are tracked only to measure the drawing.
// Supported words are G0-G3 (sticky motion mode), G90/G91, X/Y/Z, I/J or R for arcs and F.
// Everything else (M codes, S, G21, ...) is ignored.
package gcode
