package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"omrpipe/internal/config"
	"omrpipe/internal/ledger"
	"omrpipe/internal/notifications"
	"omrpipe/internal/outcome"
	"omrpipe/internal/pageio"
	"omrpipe/internal/pipeline"
	"omrpipe/internal/services"
	"omrpipe/internal/services/audiveris"
	"omrpipe/internal/testsupport"
)

func newProcessor(t *testing.T, cfg *config.Config, opts ...pipeline.Option) (*pipeline.Processor, *ledger.Store) {
	t.Helper()
	converter, err := pipeline.NewConverter(cfg, nil)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	store := testsupport.MustOpenLedger(t, cfg)
	opts = append([]pipeline.Option{pipeline.WithRecorder(store)}, opts...)
	proc, err := pipeline.New(cfg, converter, opts...)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return proc, store
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("job-%04d-0000", n)
	}
}

func TestProcessBundlesPagesAndRecordsSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc, store := newProcessor(t, cfg, pipeline.WithJobIDs(sequentialIDs()))
	source := testsupport.ScanPDF(t, t.TempDir(), "Sonata No 1.pdf", 2)

	report, err := proc.Process(context.Background(), source)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !report.Succeeded() {
		t.Fatalf("expected success, got %q (%s)", report.Outcome.Kind, report.Outcome.Cause)
	}
	if report.JobID != "job-0001-0000" {
		t.Fatalf("unexpected job id %q", report.JobID)
	}
	if len(report.Pages) != 2 || len(report.Skipped) != 0 {
		t.Fatalf("expected two cleaned pages, got %d (skipped %d)", len(report.Pages), len(report.Skipped))
	}

	wantBundle := filepath.Join(cfg.ProcessedDir(), report.JobID, "cleaned_Sonata_No_1.pdf")
	if len(report.EngineInputs) != 1 || report.EngineInputs[0] != wantBundle {
		t.Fatalf("unexpected engine inputs %v", report.EngineInputs)
	}
	if n, err := pageio.PageCount(wantBundle); err != nil || n != 2 {
		t.Fatalf("bundle page count = %d, %v", n, err)
	}
	for i, p := range report.Pages {
		want := filepath.Join(report.Layout.Processed, pageio.PageFileName("Sonata_No_1", i, pageio.FormatPNG))
		if p.Path != want {
			t.Fatalf("page %d path %q, want %q", i, p.Path, want)
		}
	}
	if filepath.Base(report.Outcome.Path()) != "cleaned_Sonata_No_1.mxl" {
		t.Fatalf("unexpected artifact %q", report.Outcome.Path())
	}
	if filepath.Dir(report.Outcome.Path()) != filepath.Join(cfg.ScoresDir(), report.JobID) {
		t.Fatalf("artifact outside the job score dir: %q", report.Outcome.Path())
	}

	archived := filepath.Join(cfg.OriginalsDir(), report.JobID, "Sonata No 1.pdf")
	if report.Original != archived {
		t.Fatalf("unexpected original %q", report.Original)
	}
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("original not archived: %v", err)
	}

	entry, err := store.Get(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if entry.Kind != outcome.KindSuccess || entry.Pages != 2 || entry.Artifact != report.Outcome.Path() || entry.Preset != "default" {
		t.Fatalf("unexpected ledger entry %#v", entry)
	}
}

func TestProcessWithoutBundleSendsPages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle("none"))
	cfg.Output.PageFormat = "tiff"
	proc, _ := newProcessor(t, cfg)
	source := testsupport.ScanPDF(t, t.TempDir(), "etude.pdf", 2)

	report, err := proc.Process(context.Background(), source)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(report.EngineInputs) != 2 {
		t.Fatalf("expected page images as engine inputs, got %v", report.EngineInputs)
	}
	for _, input := range report.EngineInputs {
		if filepath.Ext(input) != ".tif" {
			t.Fatalf("expected tiff pages, got %q", input)
		}
	}
	if !report.Succeeded() || len(report.Outcome.Artifacts) != 2 {
		t.Fatalf("expected one artifact per page, got %q %v", report.Outcome.Kind, report.Outcome.Artifacts)
	}
}

func TestProcessRecordsEngineFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngine(`echo "no staff found" >&2; exit 1`))
	proc, store := newProcessor(t, cfg)
	source := testsupport.ScanPNG(t, t.TempDir(), "blank.png", 200, 150)

	report, err := proc.Process(context.Background(), source)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if report.Outcome.Kind != outcome.KindArtifactMissing {
		t.Fatalf("expected artifact_missing, got %q", report.Outcome.Kind)
	}
	if !errors.Is(report.Outcome.Err(), services.ErrArtifactMissing) {
		t.Fatalf("unexpected outcome error %v", report.Outcome.Err())
	}
	entry, err := store.Get(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if entry.Kind != outcome.KindArtifactMissing || entry.ExitCode != 1 {
		t.Fatalf("unexpected ledger entry %#v", entry)
	}
}

func TestProcessRejectsUnsupportedInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc, store := newProcessor(t, cfg)
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("plain text, not a scan"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := proc.Process(context.Background(), text); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := proc.Process(context.Background(), filepath.Join(dir, "missing.pdf")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing file, got %v", err)
	}
	summary, err := store.Summarize(context.Background())
	if err != nil || summary.Total != 0 {
		t.Fatalf("rejected inputs must not be recorded: %d %v", summary.Total, err)
	}
}

func TestProcessRejectsOversizeInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Raster.MaxBytes = 64
	proc, _ := newProcessor(t, cfg)
	source := testsupport.ScanPNG(t, t.TempDir(), "big.png", 200, 150)

	_, err := proc.Process(context.Background(), source)
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("expected size limit rejection, got %v", err)
	}
}

func TestProcessCorruptImageFailsDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc, store := newProcessor(t, cfg)
	path := filepath.Join(t.TempDir(), "broken.png")
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("truncated")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := proc.Process(context.Background(), path)
	if !services.PageLocal(err) {
		t.Fatalf("expected page-local decode error, got %v", err)
	}
	entry, getErr := store.Get(context.Background(), report.JobID)
	if getErr != nil {
		t.Fatalf("failed job should be recorded: %v", getErr)
	}
	if entry.Kind != outcome.KindCrash || entry.Detail == "" {
		t.Fatalf("unexpected ledger entry %#v", entry)
	}
}

type stubConverter struct {
	mu   sync.Mutex
	jobs []audiveris.Job
	out  outcome.Outcome
	err  error
}

func (s *stubConverter) Convert(_ context.Context, job audiveris.Job) (outcome.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.out, s.err
}

func TestProcessSurfacesRejectedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubConverter{err: audiveris.ErrOutputBusy}
	proc, err := pipeline.New(cfg, stub)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	source := testsupport.ScanPNG(t, t.TempDir(), "score.png", 200, 150)

	report, err := proc.Process(context.Background(), source)
	if !errors.Is(err, audiveris.ErrOutputBusy) {
		t.Fatalf("expected ErrOutputBusy, got %v", err)
	}
	if len(stub.jobs) != 1 || stub.jobs[0].OutputDir != report.Layout.Scores {
		t.Fatalf("unexpected jobs %#v", stub.jobs)
	}
}

type stubNotifier struct {
	mu    sync.Mutex
	convs []notifications.Conversion
}

func (s *stubNotifier) NotifyConversion(_ context.Context, conv notifications.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = append(s.convs, conv)
	return errors.New("topic unreachable")
}

func (s *stubNotifier) NotifyBatchCompleted(context.Context, int, int, time.Duration) error {
	return nil
}

func (s *stubNotifier) TestNotification(context.Context) error { return nil }

func TestProcessNotifiesOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngine(`echo "no staff found" >&2; exit 1`))
	notifier := &stubNotifier{}
	proc, _ := newProcessor(t, cfg, pipeline.WithNotifier(notifier))
	source := testsupport.ScanPNG(t, t.TempDir(), "prelude.png", 200, 150)

	report, err := proc.Process(context.Background(), source)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(notifier.convs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.convs))
	}
	conv := notifier.convs[0]
	if conv.JobID != report.JobID || conv.Kind != outcome.KindArtifactMissing || conv.Pages != 1 {
		t.Fatalf("unexpected notification %#v", conv)
	}
}

func TestProcessWithoutConverter(t *testing.T) {
	proc, err := pipeline.New(testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if _, err := proc.Process(context.Background(), "whatever.pdf"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestCleanFileWritesPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc, err := pipeline.New(cfg, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	source := testsupport.ScanPDF(t, t.TempDir(), "hymn.pdf", 3)
	outDir := filepath.Join(t.TempDir(), "cleaned")

	report, err := proc.CleanFile(context.Background(), source, outDir)
	if err != nil {
		t.Fatalf("CleanFile returned error: %v", err)
	}
	if len(report.Pages) != 3 {
		t.Fatalf("expected three pages, got %d", len(report.Pages))
	}
	for i, p := range report.Pages {
		if p.Index != i {
			t.Fatalf("pages out of order: %d at %d", p.Index, i)
		}
		if _, err := os.Stat(p.Path); err != nil {
			t.Fatalf("page %d not written: %v", i, err)
		}
		if p.Skew.Present {
			t.Fatalf("scan without staff lines should have no skew estimate, page %d", i)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "cleaned_hymn.pdf")); err != nil {
		t.Fatalf("bundle not written: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cleaning.BlockSize = 4
	if _, err := pipeline.New(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := pipeline.New(nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil config, got %v", err)
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"/scans/Sonata No 1.pdf": "Sonata_No_1",
		"page.png":               "page",
		"/x/a:b.tif":             "a-b",
		"/x/.pdf":                "document",
	}
	for in, want := range tests {
		if got := pipeline.Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}
