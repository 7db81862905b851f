package testsupport

import (
	"context"
	"testing"
	"time"

	"omrpipe/internal/config"
	"omrpipe/internal/ledger"
	"omrpipe/internal/outcome"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordEntry inserts a conversion with the given job ID and outcome.
func RecordEntry(t testing.TB, store *ledger.Store, jobID string, kind outcome.Kind, created time.Time) ledger.Entry {
	t.Helper()

	entry := ledger.Entry{
		JobID:     jobID,
		Source:    "/scans/" + jobID + ".pdf",
		Preset:    "default",
		Pages:     1,
		Kind:      kind,
		CreatedAt: created,
	}
	if kind == outcome.KindSuccess {
		entry.Artifact = "/scores/" + jobID + ".mxl"
	}
	id, err := store.Record(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	entry.ID = id
	return entry
}
