package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"omrpipe/internal/config"
	"omrpipe/internal/pipeline"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "clean <document>",
		Short: "Rasterize, clean, and deskew a scan without converting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outDir)
			if target == "" {
				target = filepath.Join(filepath.Dir(source), pipeline.Stem(source)+"_cleaned")
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}

			proc, err := pipeline.New(cfg, nil, pipeline.WithLogger(logger))
			if err != nil {
				return err
			}
			report, err := proc.CleanFile(cmd.Context(), source, target)
			if asJSON {
				if jsonErr := writeJSON(cmd, newReportJSON(report, err)); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderPages(out, report)
			for _, input := range report.EngineInputs {
				if strings.HasSuffix(input, ".pdf") {
					fmt.Fprintf(out, "Bundle: %s\n", input)
				}
			}
			fmt.Fprintf(out, "Cleaned %d page(s) into %s\n", len(report.Pages), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for cleaned pages (default <document>_cleaned next to the input)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the page report as JSON")
	return cmd
}
