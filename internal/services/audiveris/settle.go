package audiveris

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"
)

// SettlePolicy bounds the artifact poll that follows process exit. Inputs
// totalling at least Threshold bytes get LargeWait, smaller ones SmallWait.
type SettlePolicy struct {
	Interval  time.Duration
	SmallWait time.Duration
	LargeWait time.Duration
	Threshold int64
}

// DefaultSettlePolicy returns the standard poll bounds.
func DefaultSettlePolicy() SettlePolicy {
	return SettlePolicy{
		Interval:  100 * time.Millisecond,
		SmallWait: 500 * time.Millisecond,
		LargeWait: 2 * time.Second,
		Threshold: 1 << 20,
	}
}

func (p SettlePolicy) maxWait(inputBytes int64) time.Duration {
	if inputBytes >= p.Threshold {
		return p.LargeWait
	}
	return p.SmallWait
}

// awaitArtifacts polls until every expected path exists as a regular file or
// the wait elapses. It returns the paths that were found.
func awaitArtifacts(ctx context.Context, expected []string, wait, interval time.Duration) []string {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		found := presentFiles(expected)
		if len(found) == len(expected) || !time.Now().Before(deadline) {
			return found
		}
		sleep := interval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return presentFiles(expected)
		case <-timer.C:
		}
	}
}

func presentFiles(paths []string) []string {
	found := make([]string, 0, len(paths))
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			found = append(found, path)
		}
	}
	return found
}

func totalSize(paths []string) int64 {
	var total int64
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// listDir returns sorted entry names with a trailing slash on directories.
func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return []string{fmt.Sprintf("(unreadable: %v)", err)}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
