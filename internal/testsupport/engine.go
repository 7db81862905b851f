package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Environment variables the fake engine honours.
const (
	FakeArgsEnv = "OMRPIPE_FAKE_ARGS"
	FakeEnvEnv  = "OMRPIPE_FAKE_JAVA_OPTS"
	FakePIDEnv  = "OMRPIPE_FAKE_PID"
)

const fakeEngineHeader = `#!/bin/sh
out=""
opus=0
if [ -n "$OMRPIPE_FAKE_ARGS" ]; then printf '%s\n' "$@" > "$OMRPIPE_FAKE_ARGS"; fi
if [ -n "$OMRPIPE_FAKE_JAVA_OPTS" ]; then printf '%s\n' "$JAVA_OPTS" > "$OMRPIPE_FAKE_JAVA_OPTS"; fi
while [ $# -gt 0 ]; do
  case "$1" in
    -output) out="$2"; shift 2 ;;
    -option)
      case "$2" in
        org.audiveris.omr.sheet.BookManager.useOpus=true) opus=1 ;;
      esac
      shift 2 ;;
    --) shift; break ;;
    *) shift ;;
  esac
done
write_artifacts() {
  for f in "$@"; do
    base=$(basename "$f")
    stem=${base%.*}
    if [ "$opus" = 1 ]; then
      printf 'PK' > "$out/$stem.opus.mxl"
    else
      printf 'PK' > "$out/$stem.mxl"
    fi
  done
}
`

// FakeEngine writes an executable shell script that parses its arguments the
// way Audiveris does and then runs body. Inside body, $out is the output
// directory, $opus is 1 when opus bundling was requested, "$@" holds the
// inputs, and write_artifacts "$@" creates the expected artifacts.
func FakeEngine(t testing.TB, body string) string {
	t.Helper()
	return WriteScript(t, "audiveris", fakeEngineHeader+body+"\n")
}

// WriteScript writes an executable script into a fresh temp directory.
func WriteScript(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}
