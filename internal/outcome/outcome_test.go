package outcome_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"omrpipe/internal/outcome"
	"omrpipe/internal/services"
)

func TestClassify(t *testing.T) {
	expected := []string{"/out/a.mxl", "/out/b.mxl"}
	tests := []struct {
		name     string
		result   outcome.Result
		want     outcome.Kind
		wantPath string
		sentinel error
	}{
		{
			name:     "all artifacts present",
			result:   outcome.Result{Launched: true, Expected: expected, Found: expected},
			want:     outcome.KindSuccess,
			wantPath: "/out/a.mxl",
		},
		{
			name:     "non-zero exit with artifacts is still success",
			result:   outcome.Result{Launched: true, ExitCode: 2, Expected: expected, Found: expected},
			want:     outcome.KindSuccess,
			wantPath: "/out/a.mxl",
		},
		{
			name:     "timeout wins over artifacts",
			result:   outcome.Result{Launched: true, TimedOut: true, Signal: "killed", Expected: expected, Found: expected},
			want:     outcome.KindTimeout,
			sentinel: services.ErrConversionTimeout,
		},
		{
			name:     "launch failure",
			result:   outcome.Result{LaunchErr: errors.New("exec format error"), Expected: expected},
			want:     outcome.KindCrash,
			sentinel: services.ErrConversionCrash,
		},
		{
			name:     "killed by signal",
			result:   outcome.Result{Launched: true, Signal: "segmentation fault", ExitCode: -1, Expected: expected},
			want:     outcome.KindCrash,
			sentinel: services.ErrConversionCrash,
		},
		{
			name:     "canceled",
			result:   outcome.Result{Launched: true, Canceled: true, Expected: expected},
			want:     outcome.KindCrash,
			sentinel: services.ErrConversionCrash,
		},
		{
			name:     "one artifact missing",
			result:   outcome.Result{Launched: true, Expected: expected, Found: expected[:1], Listing: []string{"a.mxl", "a.omr"}},
			want:     outcome.KindArtifactMissing,
			sentinel: services.ErrArtifactMissing,
		},
		{
			name:     "nothing expected",
			result:   outcome.Result{Launched: true},
			want:     outcome.KindArtifactMissing,
			sentinel: services.ErrArtifactMissing,
		},
		{
			name:     "zero value never panics",
			result:   outcome.Result{},
			want:     outcome.KindCrash,
			sentinel: services.ErrConversionCrash,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outcome.Classify(tt.result)
			if got.Kind != tt.want {
				t.Fatalf("Kind = %q, want %q", got.Kind, tt.want)
			}
			if got.Path() != tt.wantPath {
				t.Fatalf("Path = %q, want %q", got.Path(), tt.wantPath)
			}
			err := got.Err()
			if tt.sentinel == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
		})
	}
}

func TestClassifyArtifactMissingCarriesDiagnostics(t *testing.T) {
	r := outcome.Result{
		Launched: true,
		ExitCode: 1,
		Expected: []string{"/out/score.mxl"},
		Listing:  []string{"score.omr", "score.log"},
		Stderr:   outcome.Stream{Head: "WARN no staves\nERROR export failed", Total: 4096},
	}
	got := outcome.Classify(r)
	if len(got.Listing) != 2 || got.Listing[0] != "score.omr" {
		t.Fatalf("unexpected listing %v", got.Listing)
	}
	if len(got.Missing) != 1 || got.Missing[0] != "/out/score.mxl" {
		t.Fatalf("unexpected missing %v", got.Missing)
	}
	if !got.Stderr.Truncated() {
		t.Fatal("expected stderr to report truncation")
	}
	r.Listing[0] = "mutated"
	if got.Listing[0] != "score.omr" {
		t.Fatal("listing must be copied")
	}
}

func TestOutcomePredicates(t *testing.T) {
	timeout := outcome.Classify(outcome.Result{Launched: true, TimedOut: true, Bound: 5 * time.Second})
	if !timeout.Retryable() || timeout.Succeeded() {
		t.Fatal("timeout must be retryable and unsuccessful")
	}
	if !services.Retryable(timeout.Err()) {
		t.Fatal("timeout error must be retryable")
	}
	anomaly := outcome.Classify(outcome.Result{Launched: true, ExitCode: 3, Expected: []string{"x"}, Found: []string{"x"}})
	if !anomaly.Anomalous() || anomaly.Retryable() {
		t.Fatal("expected anomalous non-retryable success")
	}
	crash := outcome.Classify(outcome.Result{Launched: true, Signal: "killed", Stderr: outcome.Stream{Head: "java.lang.OutOfMemoryError\n"}})
	if services.Retryable(crash.Err()) {
		t.Fatal("crash must not be retryable")
	}
	if want := "stderr: java.lang.OutOfMemoryError"; !strings.Contains(crash.Err().Error(), want) {
		t.Fatalf("expected %q in %q", want, crash.Err())
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range outcome.Kinds {
		got, ok := outcome.ParseKind(string(k))
		if !ok || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	if _, ok := outcome.ParseKind("exploded"); ok {
		t.Fatal("expected unknown kind to fail")
	}
}
