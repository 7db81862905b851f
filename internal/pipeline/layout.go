package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"omrpipe/internal/config"
)

// Layout is the set of per-job work directories.
type Layout struct {
	JobID     string
	Originals string
	Processed string
	Scores    string
}

// NewLayout derives the work directories for jobID under the configured data dir.
func NewLayout(cfg *config.Config, jobID string) Layout {
	return Layout{
		JobID:     jobID,
		Originals: filepath.Join(cfg.OriginalsDir(), jobID),
		Processed: filepath.Join(cfg.ProcessedDir(), jobID),
		Scores:    filepath.Join(cfg.ScoresDir(), jobID),
	}
}

// Create makes every directory in the layout.
func (l Layout) Create() error {
	for _, dir := range []string{l.Originals, l.Processed, l.Scores} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create work directory %q: %w", dir, err)
		}
	}
	return nil
}

// Stem returns the file name of path without its extension, with characters
// that would confuse the engine's output naming replaced.
func Stem(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "", " ", "_")
	stem = strings.TrimSpace(replacer.Replace(stem))
	if stem == "" || stem == "." {
		return "document"
	}
	return stem
}
