package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/plotter-web/internal/gcode"
)

type analyzeOptions struct {
	penUpZ float64
	moves  bool
}

type analyzeOutput struct {
	gcode.Summary
	Preview string          `json:"preview"`
	Moves   []gcode.Command `json:"moves,omitempty"`
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Prints statistics for a G-code program",
		Long: `Parses a G-code file (or stdin when the file is omitted or "-") and prints
a JSON summary: move counts, pen changes, drawing and travel distance, and bounds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCommand(cmd, args, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.penUpZ, "pen-up-z", gcode.DefaultPenUpZ,
		"Z height at or below which the pen is lifted (overrides plotter.pen_up_z)")
	cmd.Flags().BoolVar(&opts.moves, "moves", false, "include every parsed move in the output")
	return cmd
}

func runAnalyzeCommand(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	penUpZ := opts.penUpZ
	if !cmd.Flags().Changed("pen-up-z") {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		penUpZ = cfg.Plotter.PenUpZ
	}

	src, err := readProgram(cmd, args)
	if err != nil {
		return err
	}

	prog := gcode.NewParser(penUpZ).Parse(src)
	out := analyzeOutput{
		Summary: prog.Summarize(),
		Preview: gcode.Preview(src),
	}
	if opts.moves {
		out.Moves = prog.Commands
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func readProgram(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
