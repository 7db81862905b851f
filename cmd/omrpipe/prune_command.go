package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"omrpipe/internal/retention"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var all bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove stale per-job work directories",
		Long: "Prune deletes cleaned page directories older than --older-than. With --all the\n" +
			"archived originals and engine output directories are pruned too. Ledger rows are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			roots := []string{cfg.ProcessedDir()}
			if all {
				roots = append(roots, cfg.OriginalsDir(), cfg.ScoresDir())
			}

			result := retention.Prune(cmd.Context(), roots, retention.Options{MaxAge: olderThan, DryRun: dryRun}, logger)

			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, dir := range result.Removed {
				fmt.Fprintf(out, "%s %s (%s)\n", verb, dir.Path, formatBytes(dir.Size))
			}
			fmt.Fprintf(out, "%s %d director(ies), %s\n", verb, len(result.Removed), formatBytes(result.Reclaimed()))
			if len(result.Locks) > 0 {
				fmt.Fprintf(out, "Removed %d stale lock file(s)\n", len(result.Locks))
			}
			if len(result.Errors) > 0 {
				for _, failure := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", failure.Path, failure.Error)
				}
				return fmt.Errorf("%d director(ies) could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of directories to remove")
	cmd.Flags().BoolVar(&all, "all", false, "Also prune originals and engine output")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List directories without removing them")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
