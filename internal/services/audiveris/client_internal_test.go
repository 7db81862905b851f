package audiveris

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBoundedBufferKeepsHead(t *testing.T) {
	buf := newBoundedBuffer(4)
	for _, chunk := range []string{"ab", "cde", "fgh"} {
		if n, err := buf.Write([]byte(chunk)); err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	stream := buf.Stream()
	if stream.Head != "abcd" || stream.Total != 8 {
		t.Fatalf("unexpected stream %+v", stream)
	}
	if !stream.Truncated() {
		t.Fatal("expected truncated stream")
	}
}

func TestBoundedBufferZeroLimit(t *testing.T) {
	buf := newBoundedBuffer(-1)
	_, _ = buf.Write([]byte("discarded"))
	if stream := buf.Stream(); stream.Head != "" || stream.Total != 9 {
		t.Fatalf("unexpected stream %+v", stream)
	}
}

func TestBuildArgsSortsOptions(t *testing.T) {
	job := Job{Inputs: []string{"/in/a.png", "/in/-b.png"}, OutputDir: "/out"}
	args := buildArgs(job, map[string]string{"z": "1", "a": "two words"})
	want := "-batch -export -save -output /out -option a=two words -option z=1 -- /in/a.png /in/-b.png"
	if got := strings.Join(args, " "); got != want {
		t.Fatalf("buildArgs:\n got %s\nwant %s", got, want)
	}
	if args[6] != "a=two words" {
		t.Fatalf("option value must stay one argument, got %q", args[6])
	}
}

func TestBuildEnvReplacesJavaOpts(t *testing.T) {
	base := []string{"PATH=/bin", "JAVA_OPTS=-Xmx1g", "HOME=/root"}
	env := buildEnv(base, "-Xmx4g")
	joined := strings.Join(env, "\n")
	if strings.Contains(joined, "-Xmx1g") || !strings.Contains(joined, "JAVA_OPTS=-Xmx4g") {
		t.Fatalf("unexpected env %v", env)
	}
	if kept := buildEnv(base, ""); len(kept) != len(base) {
		t.Fatalf("empty jvm options must keep base env, got %v", kept)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		input string
		opus  bool
		want  string
	}{
		{"/x/sonata.pdf", false, "sonata.mxl"},
		{"/x/sonata.pdf", true, "sonata.opus.mxl"},
		{"page_001.png", false, "page_001.mxl"},
		{"/x/archive.v2.tif", false, "archive.v2.mxl"},
		{"/x/noext", false, "noext.mxl"},
	}
	for _, tt := range tests {
		if got := ArtifactName(tt.input, "mxl", tt.opus); got != tt.want {
			t.Errorf("ArtifactName(%q, %v) = %q, want %q", tt.input, tt.opus, got, tt.want)
		}
	}
}

func TestMergeOptionsPrecedence(t *testing.T) {
	preset := Preset{Opus: true, Options: map[string]string{"k": "preset", "p": "1"}}
	merged := mergeOptions(preset, map[string]string{"k": "job"})
	if merged["k"] != "job" || merged["p"] != "1" || merged[OpusOption] != "true" {
		t.Fatalf("unexpected merge %v", merged)
	}
	if !opusEnabled(merged) {
		t.Fatal("expected opus enabled")
	}
	if opusEnabled(map[string]string{OpusOption: "maybe"}) {
		t.Fatal("unparseable opus values must count as disabled")
	}
}

func TestAwaitArtifactsReturnsEarly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mxl")
	if err := os.WriteFile(path, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	found := awaitArtifacts(context.Background(), []string{path}, 5*time.Second, 10*time.Millisecond)
	if len(found) != 1 {
		t.Fatalf("expected artifact found, got %v", found)
	}
	if time.Since(start) > time.Second {
		t.Fatal("present artifacts must not wait for the full bound")
	}
}

func TestAwaitArtifactsHonoursBoundAndContext(t *testing.T) {
	missing := []string{filepath.Join(t.TempDir(), "never.mxl")}
	start := time.Now()
	if found := awaitArtifacts(context.Background(), missing, 60*time.Millisecond, 10*time.Millisecond); len(found) != 0 {
		t.Fatalf("unexpected found %v", found)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned before the bound: %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	awaitArtifacts(ctx, missing, 5*time.Second, 10*time.Millisecond)
	if time.Since(start) > time.Second {
		t.Fatal("canceled context must stop the poll")
	}
}

func TestListDirMarksDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.log"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(listDir(dir), ","); got != "b.log,sub/" {
		t.Fatalf("unexpected listing %q", got)
	}
	if listDir(filepath.Join(dir, "absent")) != nil {
		t.Fatal("missing directory must list as nil")
	}
}

func TestSettlePolicyMaxWait(t *testing.T) {
	p := SettlePolicy{SmallWait: time.Second, LargeWait: 3 * time.Second, Threshold: 100}
	if p.maxWait(99) != time.Second || p.maxWait(100) != 3*time.Second {
		t.Fatal("unexpected settle waits")
	}
}
