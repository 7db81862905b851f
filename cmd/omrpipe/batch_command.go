package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omrpipe/internal/config"
	"omrpipe/internal/notifications"
	"omrpipe/internal/raster"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var preset string
	var dir string
	var concurrency int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch [document]...",
		Short: "Process several documents concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sources, err := collectSources(args, dir)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return errors.New("no documents to process (pass files or --dir)")
			}
			limit := concurrency
			if limit <= 0 {
				limit = cfg.Batch.Concurrency
			}

			proc, closeLedger, err := ctx.openProcessor(cmd.Context(), preset)
			if err != nil {
				return err
			}
			defer closeLedger()

			started := time.Now()
			results := proc.Batch(cmd.Context(), sources, limit)
			failed := 0
			for _, r := range results {
				if r.Err != nil || !r.Report.Succeeded() {
					failed++
				}
			}
			notifier := notifications.NewService(cfg)
			if err := notifier.NotifyBatchCompleted(cmd.Context(), len(results)-failed, failed, time.Since(started)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "notification failed: %v\n", err)
			}

			if asJSON {
				reports := make([]reportJSON, 0, len(results))
				for _, r := range results {
					report := newReportJSON(r.Report, r.Err)
					report.Source = r.Source
					reports = append(reports, report)
				}
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					detail := r.Report.Outcome.Path()
					kind := outcomeLabel(r.Report.Outcome.Kind)
					if r.Err != nil {
						kind = "Rejected"
						detail = r.Err.Error()
					} else if !r.Report.Succeeded() {
						detail = r.Report.Outcome.Cause
					}
					rows = append(rows, []string{
						shortID(r.Report.JobID),
						filepath.Base(r.Source),
						fmt.Sprintf("%d", len(r.Report.Pages)),
						kind,
						detail,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Document", "Pages", "Outcome", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d of %d document(s) converted\n", len(results)-failed, len(results))
			}
			if failed > 0 {
				return fmt.Errorf("%d document(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Engine preset (default from config)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Process every supported document in this directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Documents in flight (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit job reports as JSON")
	return cmd
}

// collectSources expands args and, when dir is set, adds every regular file in
// it whose content sniffs as a supported document.
func collectSources(args []string, dir string) ([]string, error) {
	sources := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, path)
	}
	if dir = strings.TrimSpace(dir); dir == "" {
		return sources, nil
	}
	root, err := config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var found []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if sniffFile(path) != raster.TypeUnknown {
			found = append(found, path)
		}
	}
	sort.Strings(found)
	return append(sources, found...), nil
}

func sniffFile(path string) raster.ContentType {
	f, err := os.Open(path)
	if err != nil {
		return raster.TypeUnknown
	}
	defer f.Close()
	head := make([]byte, 16)
	n, _ := f.Read(head)
	return raster.Detect(head[:n])
}
