package gcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"more than five lines", "G1\nG2\nG3\nG4\nG5\nG6\nG7", "G1\nG2\nG3\nG4\nG5..."},
		{"exactly five lines", "a\nb\nc\nd\ne", "a\nb\nc\nd\ne..."},
		{"fewer than five lines", "G1\nG2", "G1\nG2..."},
		{"single line", "G28", "G28..."},
		{"trailing newline kept", "G1\n", "G1\n..."},
		{"sixth empty line dropped", "a\nb\nc\nd\ne\n", "a\nb\nc\nd\ne..."},
		{"carriage returns untouched", "G1\r\nG2\r\n", "G1\r\nG2\r\n..."},
		{"empty", "", EmptyPreview},
		{"whitespace only still previews", " ", " ..."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Preview(tc.input))
		})
	}
}

func TestLineCount(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, LineCount(""))
	require.Equal(t, 1, LineCount("G1"))
	require.Equal(t, 3, LineCount("G1\nG2\n"))
}

func FuzzPreview(f *testing.F) {
	f.Add("G1\nG2\nG3\nG4\nG5\nG6")
	f.Add("")
	f.Add("\n\n\n\n\n\n\n")
	f.Fuzz(func(t *testing.T, in string) {
		got := Preview(in)
		if in == "" {
			if got != EmptyPreview {
				t.Fatalf("Preview(%q) = %q", in, got)
			}
			return
		}
		if len(got) < len(PreviewSuffix) || got[len(got)-len(PreviewSuffix):] != PreviewSuffix {
			t.Fatalf("Preview(%q) = %q, missing suffix", in, got)
		}
		if LineCount(got) > PreviewLines {
			t.Fatalf("Preview(%q) kept %d lines", in, LineCount(got))
		}
	})
}
