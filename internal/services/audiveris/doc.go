// Package audiveris drives the Audiveris optical music recognition engine as a
// subprocess.
//
// A Client holds only immutable configuration (executable, preset, artifact
// extension, settle policy) and is safe for concurrent use. Convert runs one
// Job: it launches the engine in batch/export mode in its own process group,
// captures bounded stdout/stderr, enforces the wall-clock bound by killing the
// whole group, then polls briefly for the expected MusicXML artifacts before
// handing the raw observation to outcome.Classify.
//
// The Executor interface isolates process management so tests can substitute
// shell-script fakes or in-memory stubs.
package audiveris
