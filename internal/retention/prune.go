// Package retention removes per-job work directories that have outlived
// their usefulness.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"omrpipe/internal/logging"
)

// Result contains the outcome of a prune pass.
type Result struct {
	Removed []Dir
	// Locks lists orphaned output-directory lock files that were removed.
	Locks   []string
	Errors  []Failure
}

// Failure pairs a directory path with its removal error.
type Failure struct {
	Path  string
	Error error
}

// Dir describes one job directory under a work root.
type Dir struct {
	JobID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// Options controls a prune pass.
type Options struct {
	MaxAge time.Duration
	// DryRun reports what would be removed without touching the filesystem.
	DryRun bool
	// Keep lists job IDs that must survive regardless of age.
	Keep map[string]struct{}
}

// Prune removes job directories under each root whose modification time is
// older than opts.MaxAge, together with their "<dir>.lock" siblings. Lock
// files older than the cutoff whose directory is gone are swept too. Missing
// roots are skipped.
func Prune(ctx context.Context, roots []string, opts Options, logger *slog.Logger) Result {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result Result
	cutoff := time.Now().Add(-opts.MaxAge)

	for _, root := range roots {
		dirs, err := List(root)
		if err != nil {
			result.Errors = append(result.Errors, Failure{Path: root, Error: err})
			continue
		}
		for _, dir := range dirs {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, Failure{Path: dir.Path, Error: ctx.Err()})
				return result
			}
			if !dir.ModTime.Before(cutoff) {
				continue
			}
			if _, keep := opts.Keep[dir.JobID]; keep {
				continue
			}
			if opts.DryRun {
				result.Removed = append(result.Removed, dir)
				continue
			}
			if err := os.RemoveAll(dir.Path); err != nil {
				result.Errors = append(result.Errors, Failure{Path: dir.Path, Error: err})
				logger.Warn("failed to remove stale work directory",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "prune_failed"),
					logging.String(logging.FieldErrorHint, "check data_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, dir)
			logger.Info("removed stale work directory",
				logging.String("path", dir.Path),
				logging.Duration("age", time.Since(dir.ModTime)),
				logging.String(logging.FieldEventType, "prune"),
			)
		}
		if !opts.DryRun {
			sweepLocks(root, cutoff, &result)
		}
	}
	return result
}

// sweepLocks removes "<name>.lock" files under root whose directory no
// longer exists and which were last touched before cutoff.
func sweepLocks(root string, cutoff time.Time, result *Result) {
	root = strings.TrimSpace(root)
	if root == "" {
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, ".lock") {
			continue
		}
		path := filepath.Join(root, name)
		if _, err := os.Stat(strings.TrimSuffix(path, ".lock")); err == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, Failure{Path: path, Error: err})
			continue
		}
		result.Locks = append(result.Locks, path)
	}
}

// Reclaimed sums the sizes of removed directories.
func (r Result) Reclaimed() int64 {
	var total int64
	for _, dir := range r.Removed {
		total += dir.Size
	}
	return total
}

// List returns the job directories directly under root, oldest first.
func List(root string) ([]Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []Dir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		size, _ := dirSize(path)
		dirs = append(dirs, Dir{JobID: entry.Name(), Path: path, ModTime: info.ModTime(), Size: size})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ModTime.Before(dirs[j].ModTime) })
	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, err
}
