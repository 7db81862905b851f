package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"omrpipe/internal/ledger"
	"omrpipe/internal/outcome"
	"omrpipe/internal/testsupport"
)

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	entry := ledger.Entry{
		JobID:        "0f8c2d6e-0000-4000-8000-000000000001",
		Source:       "/scans/sonata.pdf",
		Preset:       "default",
		OriginalPath: "/data/originals/x/sonata.pdf",
		ProcessedDir: "/data/processed/x",
		OutputDir:    "/data/xmlmusic/x",
		Pages:        3,
		Kind:         outcome.KindSuccess,
		Artifact:     "/data/xmlmusic/x/cleaned_sonata.mxl",
		ExitCode:     0,
		Elapsed:      1500 * time.Millisecond,
	}
	id, err := store.Record(ctx, entry)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected row id")
	}

	got, err := store.Get(ctx, entry.JobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Artifact != entry.Artifact || got.Pages != 3 || got.Elapsed != entry.Elapsed || got.Kind != outcome.KindSuccess {
		t.Fatalf("unexpected entry %#v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at default")
	}

	byPrefix, err := store.Get(ctx, "0f8c2d6e")
	if err != nil || byPrefix.ID != id {
		t.Fatalf("prefix lookup failed: %v %#v", err, byPrefix)
	}
	if _, err := store.Get(ctx, "ffffffff"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Record(ctx, ledger.Entry{Kind: outcome.KindCrash}); err == nil {
		t.Fatal("expected error without job id")
	}
	if _, err := store.Record(ctx, ledger.Entry{JobID: "abc"}); err == nil {
		t.Fatal("expected error without outcome")
	}
	if _, err := store.Record(ctx, ledger.Entry{JobID: "dup", Kind: outcome.KindCrash}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := store.Record(ctx, ledger.Entry{JobID: "dup", Kind: outcome.KindCrash}); err == nil {
		t.Fatal("expected duplicate job id to be rejected")
	}
}

func TestRecentOrderingAndFilter(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testsupport.RecordEntry(t, store, "job-a", outcome.KindSuccess, base)
	testsupport.RecordEntry(t, store, "job-b", outcome.KindTimeout, base.Add(time.Minute))
	testsupport.RecordEntry(t, store, "job-c", outcome.KindSuccess, base.Add(2*time.Minute))

	entries, err := store.Recent(context.Background(), 10, "")
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 || entries[0].JobID != "job-c" || entries[2].JobID != "job-a" {
		t.Fatalf("unexpected order %v", jobIDs(entries))
	}

	limited, err := store.Recent(context.Background(), 1, outcome.KindSuccess)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(limited) != 1 || limited[0].JobID != "job-c" {
		t.Fatalf("unexpected filtered entries %v", jobIDs(limited))
	}
	if !limited[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("created_at round trip: %v", limited[0].CreatedAt)
	}
}

func TestSummarize(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testsupport.RecordEntry(t, store, "s1", outcome.KindSuccess, base)
	testsupport.RecordEntry(t, store, "s2", outcome.KindSuccess, base.Add(time.Hour))
	testsupport.RecordEntry(t, store, "m1", outcome.KindArtifactMissing, base.Add(30*time.Minute))

	summary, err := store.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Total != 3 || summary.ByKind[outcome.KindSuccess] != 2 || summary.ByKind[outcome.KindArtifactMissing] != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if !summary.Last.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected last timestamp %v", summary.Last)
	}
}

func TestConcurrentRecords(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Record(context.Background(), ledger.Entry{
				JobID: time.Now().Format(time.RFC3339Nano) + "-" + string(rune('a'+i)),
				Kind:  outcome.KindSuccess,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Record failed: %v", err)
		}
	}
	summary, err := store.Summarize(context.Background())
	if err != nil || summary.Total != 16 {
		t.Fatalf("expected 16 rows, got %d (%v)", summary.Total, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	store.Close()

	db, err := sql.Open("sqlite", cfg.Paths.LedgerPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := ledger.Open(cfg); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

const versionOneSchema = `
CREATE TABLE schema_version (version INTEGER NOT NULL);
INSERT INTO schema_version (version) VALUES (1);
CREATE TABLE conversions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id        TEXT    NOT NULL UNIQUE,
    source        TEXT    NOT NULL,
    preset        TEXT    NOT NULL DEFAULT '',
    original_path TEXT,
    processed_dir TEXT,
    output_dir    TEXT,
    pages         INTEGER NOT NULL DEFAULT 0,
    outcome       TEXT    NOT NULL,
    artifact      TEXT,
    exit_code     INTEGER NOT NULL DEFAULT 0,
    elapsed_ms    INTEGER NOT NULL DEFAULT 0,
    detail        TEXT,
    created_at    TEXT    NOT NULL
);
INSERT INTO conversions (job_id, source, outcome, created_at)
VALUES ('11111111-old', '/scans/old.pdf', 'crash', '2026-01-02T03:04:05.000000000Z');
`

func TestOpenMigratesVersionOneLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	db, err := sql.Open("sqlite", cfg.Paths.LedgerPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(versionOneSchema); err != nil {
		t.Fatalf("seed version 1 ledger: %v", err)
	}
	db.Close()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	old, err := store.Get(ctx, "11111111-old")
	if err != nil {
		t.Fatalf("Get migrated row: %v", err)
	}
	if old.Kind != outcome.KindCrash || old.BatchID != "" || old.Signal != "" {
		t.Fatalf("unexpected migrated row %+v", old)
	}

	if _, err := store.Record(ctx, ledger.Entry{
		JobID:   "22222222-new",
		Source:  "/scans/new.pdf",
		Kind:    outcome.KindCrash,
		BatchID: "batch-1",
		Signal:  "killed",
	}); err != nil {
		t.Fatalf("Record after migration: %v", err)
	}
	fresh, err := store.Get(ctx, "22222222-new")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.BatchID != "batch-1" || fresh.Signal != "killed" {
		t.Fatalf("expected batch and signal columns, got %+v", fresh)
	}
}

func jobIDs(entries []ledger.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.JobID
	}
	return ids
}
