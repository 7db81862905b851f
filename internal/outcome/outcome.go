// Package outcome classifies the raw result of an engine run into a closed
// set of terminal outcomes.
package outcome

import (
	"fmt"
	"strings"
	"time"

	"omrpipe/internal/services"
)

// Kind is the terminal classification of a conversion.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindTimeout         Kind = "timeout"
	KindCrash           Kind = "crash"
	KindArtifactMissing Kind = "artifact_missing"
)

// Kinds lists every outcome kind in reporting order.
var Kinds = []Kind{KindSuccess, KindTimeout, KindCrash, KindArtifactMissing}

// ParseKind maps a stored string back to a Kind.
func ParseKind(value string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == value {
			return k, true
		}
	}
	return "", false
}

// Stream is a bounded capture of one output stream.
type Stream struct {
	// Head holds the first bytes written, up to the capture limit.
	Head string
	// Total counts every byte written, including those not retained.
	Total int64
}

// Truncated reports whether bytes were dropped from the capture.
func (s Stream) Truncated() bool {
	return s.Total > int64(len(s.Head))
}

// Result is the raw observation of one engine run.
type Result struct {
	// Launched is false when the process could not be started.
	Launched  bool
	LaunchErr error
	TimedOut  bool
	// Canceled is set when the caller abandoned the run before it finished.
	Canceled bool
	ExitCode int
	// Signal names the signal that terminated the process, if any.
	Signal    string
	Stdout    Stream
	Stderr    Stream
	Elapsed   time.Duration
	Bound     time.Duration
	OutputDir string
	Expected  []string
	Found     []string
	Listing   []string
}

// Outcome is the classified, terminal result of a conversion.
type Outcome struct {
	Kind      Kind
	Artifacts []string
	Missing   []string
	ExitCode  int
	Signal    string
	Cause     string
	Stdout    Stream
	Stderr    Stream
	Listing   []string
	OutputDir string
	Elapsed   time.Duration
	Bound     time.Duration
}

// Classify maps a raw result to its outcome. It is total: every input yields
// exactly one kind. Timeout takes precedence, then failure to launch or
// abnormal termination, then artifact presence.
func Classify(r Result) Outcome {
	o := Outcome{
		ExitCode:  r.ExitCode,
		Signal:    r.Signal,
		Stdout:    r.Stdout,
		Stderr:    r.Stderr,
		OutputDir: r.OutputDir,
		Elapsed:   r.Elapsed,
		Bound:     r.Bound,
	}
	switch {
	case r.TimedOut:
		o.Kind = KindTimeout
		o.Cause = fmt.Sprintf("engine exceeded %s", r.Bound)
	case !r.Launched:
		o.Kind = KindCrash
		o.Cause = "engine failed to start"
		if r.LaunchErr != nil {
			o.Cause = r.LaunchErr.Error()
		}
	case r.Canceled:
		o.Kind = KindCrash
		o.Cause = "conversion canceled"
	case r.Signal != "":
		o.Kind = KindCrash
		o.Cause = "engine terminated by " + r.Signal
	default:
		found := make(map[string]struct{}, len(r.Found))
		for _, path := range r.Found {
			found[path] = struct{}{}
		}
		for _, path := range r.Expected {
			if _, ok := found[path]; ok {
				o.Artifacts = append(o.Artifacts, path)
			} else {
				o.Missing = append(o.Missing, path)
			}
		}
		if len(r.Expected) > 0 && len(o.Missing) == 0 {
			o.Kind = KindSuccess
			return o
		}
		o.Kind = KindArtifactMissing
		o.Artifacts = nil
		o.Listing = append([]string(nil), r.Listing...)
		if len(r.Expected) == 0 {
			o.Cause = "no artifact expected"
		} else {
			o.Cause = fmt.Sprintf("engine exited %d without writing %s", r.ExitCode, strings.Join(baseNames(o.Missing), ", "))
		}
	}
	return o
}

// Succeeded reports whether every expected artifact was produced.
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess
}

// Anomalous reports a success whose process exited non-zero.
func (o Outcome) Anomalous() bool {
	return o.Kind == KindSuccess && o.ExitCode != 0
}

// Retryable reports whether running the job again with a larger bound may succeed.
func (o Outcome) Retryable() bool {
	return o.Kind == KindTimeout
}

// Path returns the primary artifact path, or "" for failures.
func (o Outcome) Path() string {
	if o.Kind != KindSuccess || len(o.Artifacts) == 0 {
		return ""
	}
	return o.Artifacts[0]
}

// Err converts a failed outcome into an error tagged with the matching sentinel.
func (o Outcome) Err() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindTimeout:
		return services.Wrap(services.ErrConversionTimeout, "convert", "run", o.Cause, nil)
	case KindCrash:
		return services.Wrap(services.ErrConversionCrash, "convert", "run", o.crashDetail(), nil)
	case KindArtifactMissing:
		return services.Wrap(services.ErrArtifactMissing, "convert", "locate artifact", o.Cause, nil)
	default:
		return services.Wrap(services.ErrConversionCrash, "convert", "classify", fmt.Sprintf("unknown outcome %q", o.Kind), nil)
	}
}

func (o Outcome) crashDetail() string {
	tail := lastLine(o.Stderr.Head)
	if tail == "" {
		return o.Cause
	}
	return o.Cause + " (stderr: " + tail + ")"
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if j := strings.LastIndexByte(p, '/'); j >= 0 {
			p = p[j+1:]
		}
		out[i] = p
	}
	return out
}
