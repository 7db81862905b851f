package audiveris

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OpusOption is the engine constant that bundles all movements of a book into
// a single opus artifact.
const OpusOption = "org.audiveris.omr.sheet.BookManager.useOpus"

// Preset is a named, validated set of engine options.
type Preset struct {
	Name    string
	Options map[string]string
	Opus    bool
	Timeout time.Duration
}

// Job describes one conversion. The client copies its slices and maps, so the
// caller may reuse them after Convert returns.
type Job struct {
	// Inputs are page images or a single bundled document, in order.
	Inputs    []string
	OutputDir string
	// Options override preset options by name.
	Options map[string]string
	// Timeout overrides the preset bound when positive.
	Timeout time.Duration
}

func (j Job) clone() Job {
	out := Job{
		Inputs:    append([]string(nil), j.Inputs...),
		OutputDir: j.OutputDir,
		Timeout:   j.Timeout,
	}
	if len(j.Options) > 0 {
		out.Options = make(map[string]string, len(j.Options))
		for k, v := range j.Options {
			out.Options[k] = v
		}
	}
	return out
}

// mergeOptions overlays job options on the preset. The opus flag is folded in
// as OpusOption unless either map sets it explicitly.
func mergeOptions(preset Preset, job map[string]string) map[string]string {
	merged := make(map[string]string, len(preset.Options)+len(job)+1)
	if preset.Opus {
		merged[OpusOption] = "true"
	}
	for k, v := range preset.Options {
		merged[k] = v
	}
	for k, v := range job {
		merged[k] = v
	}
	return merged
}

// opusEnabled reports whether the options ask for opus bundling.
func opusEnabled(options map[string]string) bool {
	value, ok := options[OpusOption]
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && enabled
}

// ArtifactName returns the file the engine writes for an input.
func ArtifactName(input, ext string, opus bool) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if opus {
		return stem + ".opus." + ext
	}
	return stem + "." + ext
}

func expectedArtifacts(job Job, ext string, opus bool) []string {
	paths := make([]string, len(job.Inputs))
	for i, input := range job.Inputs {
		paths[i] = filepath.Join(job.OutputDir, ArtifactName(input, ext, opus))
	}
	return paths
}

// buildArgs returns the engine argument vector with options sorted by name.
func buildArgs(job Job, options map[string]string) []string {
	args := []string{"-batch", "-export", "-save", "-output", job.OutputDir}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-option", k+"="+options[k])
	}
	args = append(args, "--")
	args = append(args, job.Inputs...)
	return args
}

// buildEnv returns base with JAVA_OPTS replaced when jvmOptions is set.
func buildEnv(base []string, jvmOptions string) []string {
	jvmOptions = strings.TrimSpace(jvmOptions)
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if jvmOptions != "" && strings.HasPrefix(kv, "JAVA_OPTS=") {
			continue
		}
		env = append(env, kv)
	}
	if jvmOptions != "" {
		env = append(env, "JAVA_OPTS="+jvmOptions)
	}
	return env
}
