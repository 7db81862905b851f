package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omrpipe/internal/ledger"
	"omrpipe/internal/outcome"
)

type entryJSON struct {
	JobID        string `json:"job_id"`
	Source       string `json:"source"`
	Preset       string `json:"preset,omitempty"`
	OriginalPath string `json:"original_path,omitempty"`
	ProcessedDir string `json:"processed_dir,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`
	Pages        int    `json:"pages"`
	Outcome      string `json:"outcome"`
	Artifact     string `json:"artifact,omitempty"`
	ExitCode     int    `json:"exit_code"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Detail       string `json:"detail,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
	Signal       string `json:"signal,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func newEntryJSON(e ledger.Entry) entryJSON {
	return entryJSON{
		JobID:        e.JobID,
		Source:       e.Source,
		Preset:       e.Preset,
		OriginalPath: e.OriginalPath,
		ProcessedDir: e.ProcessedDir,
		OutputDir:    e.OutputDir,
		Pages:        e.Pages,
		Outcome:      string(e.Kind),
		Artifact:     e.Artifact,
		ExitCode:     e.ExitCode,
		ElapsedMS:    e.Elapsed.Milliseconds(),
		Detail:       e.Detail,
		BatchID:      e.BatchID,
		Signal:       e.Signal,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var kindFilter string
	var jobID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var kind outcome.Kind
			if value := strings.TrimSpace(kindFilter); value != "" {
				parsed, ok := outcome.ParseKind(value)
				if !ok {
					return fmt.Errorf("unknown outcome %q (want success, timeout, crash, or artifact_missing)", value)
				}
				kind = parsed
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.Paths.LedgerPath); errors.Is(err, os.ErrNotExist) {
				if asJSON {
					return writeJSON(cmd, []entryJSON{})
				}
				fmt.Fprintln(out, "No conversions recorded")
				return nil
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if id := strings.TrimSpace(jobID); id != "" {
				entry, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, newEntryJSON(entry))
				}
				renderEntry(cmd, entry)
				return nil
			}

			entries, err := store.Recent(cmd.Context(), limit, kind)
			if err != nil {
				return err
			}
			if asJSON {
				items := make([]entryJSON, 0, len(entries))
				for _, e := range entries {
					items = append(items, newEntryJSON(e))
				}
				return writeJSON(cmd, items)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversions recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					shortID(e.JobID),
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					filepath.Base(e.Source),
					e.Preset,
					fmt.Sprintf("%d", e.Pages),
					outcomeLabel(e.Kind),
					formatDuration(e.Elapsed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Job", "When", "Document", "Preset", "Pages", "Outcome", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&kindFilter, "outcome", "", "Only show entries with this outcome")
	cmd.Flags().StringVar(&jobID, "job", "", "Show one job by ID or unique prefix")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit entries as JSON")
	return cmd
}

func renderEntry(cmd *cobra.Command, e ledger.Entry) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	status := statusOK
	if e.Kind != outcome.KindSuccess {
		status = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Job", statusInfo, e.JobID, colorize))
	fmt.Fprintln(out, renderStatusLine("Recorded", statusInfo, e.CreatedAt.Local().Format(time.RFC1123), colorize))
	fmt.Fprintln(out, renderStatusLine("Document", statusInfo, e.Source, colorize))
	fmt.Fprintln(out, renderStatusLine("Outcome", status, outcomeLabel(e.Kind), colorize))
	if e.Artifact != "" {
		fmt.Fprintln(out, renderStatusLine("Artifact", statusInfo, e.Artifact, colorize))
	}
	if e.Detail != "" {
		fmt.Fprintln(out, renderStatusLine("Detail", statusInfo, e.Detail, colorize))
	}
	if e.Signal != "" {
		fmt.Fprintln(out, renderStatusLine("Signal", statusInfo, e.Signal, colorize))
	}
	if e.BatchID != "" {
		fmt.Fprintln(out, renderStatusLine("Batch", statusInfo, e.BatchID, colorize))
	}
	for _, line := range [][2]string{
		{"Original", e.OriginalPath},
		{"Processed", e.ProcessedDir},
		{"Output dir", e.OutputDir},
	} {
		if line[1] != "" {
			fmt.Fprintln(out, renderStatusLine(line[0], statusInfo, line[1], colorize))
		}
	}
	fmt.Fprintln(out, renderStatusLine("Exit code", statusInfo, fmt.Sprintf("%d", e.ExitCode), colorize))
	fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, formatDuration(e.Elapsed), colorize))
}
