package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omrpipe/internal/config"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var preset string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <document>",
		Short: "Clean a scan and convert it to MusicXML",
		Long: "Process archives the document, rasterizes and cleans every page, bundles the\n" +
			"cleaned pages, runs the engine, and records the outcome in the ledger.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			proc, closeLedger, err := ctx.openProcessor(cmd.Context(), preset)
			if err != nil {
				return err
			}
			defer closeLedger()

			report, err := proc.Process(cmd.Context(), source)
			if asJSON {
				if jsonErr := writeJSON(cmd, newReportJSON(report, err)); jsonErr != nil {
					return jsonErr
				}
				if err != nil {
					return err
				}
				return report.Outcome.Err()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Job", statusInfo, report.JobID, colorize))
			renderPages(out, report)
			renderOutcome(out, report.Outcome, colorize)
			return report.Outcome.Err()
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Engine preset (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the job report as JSON")
	return cmd
}
