package preflight

import (
	"context"
	"strings"

	"omrpipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Originals directory", cfg.OriginalsDir()),
		CheckDirectoryAccess("Processed directory", cfg.ProcessedDir()),
		CheckDirectoryAccess("Scores directory", cfg.ScoresDir()),
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", dir))
	}
	results = append(results, CheckEngine(ctx, cfg))
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
