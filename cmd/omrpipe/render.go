package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"omrpipe/internal/outcome"
	"omrpipe/internal/pipeline"
)

var titleCaser = cases.Title(language.Und)

func outcomeLabel(kind outcome.Kind) string {
	if kind == "" {
		return "Not Run"
	}
	return titleCaser.String(strings.ReplaceAll(string(kind), "_", " "))
}

func outcomeStatus(out outcome.Outcome) statusKind {
	switch {
	case out.Kind == outcome.KindSuccess && out.Anomalous():
		return statusWarn
	case out.Kind == outcome.KindSuccess:
		return statusOK
	case out.Kind == "":
		return statusInfo
	default:
		return statusError
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderOutcome(w io.Writer, out outcome.Outcome, colorize bool) {
	fmt.Fprintln(w, renderStatusLine("Outcome", outcomeStatus(out), outcomeLabel(out.Kind), colorize))
	for _, artifact := range out.Artifacts {
		fmt.Fprintln(w, renderStatusLine("Artifact", statusInfo, artifact, colorize))
	}
	for _, missing := range out.Missing {
		fmt.Fprintln(w, renderStatusLine("Missing", statusWarn, filepath.Base(missing), colorize))
	}
	if out.Kind != outcome.KindSuccess || out.Anomalous() {
		fmt.Fprintln(w, renderStatusLine("Exit code", statusInfo, fmt.Sprintf("%d", out.ExitCode), colorize))
		if out.Signal != "" {
			fmt.Fprintln(w, renderStatusLine("Signal", statusInfo, out.Signal, colorize))
		}
		if out.Cause != "" {
			fmt.Fprintln(w, renderStatusLine("Cause", statusInfo, out.Cause, colorize))
		}
	}
	if out.Kind == outcome.KindArtifactMissing {
		listing := "(empty)"
		if len(out.Listing) > 0 {
			listing = strings.Join(out.Listing, ", ")
		}
		fmt.Fprintln(w, renderStatusLine("Output dir", statusInfo, listing, colorize))
	}
	if tail := lastLine(out.Stderr.Head); tail != "" && out.Kind != outcome.KindSuccess {
		fmt.Fprintln(w, renderStatusLine("Stderr", statusInfo, tail, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Elapsed", statusInfo, formatDuration(out.Elapsed), colorize))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type outcomeJSON struct {
	Kind      string   `json:"outcome"`
	Artifacts []string `json:"artifacts,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	ExitCode  int      `json:"exit_code"`
	Signal    string   `json:"signal,omitempty"`
	Cause     string   `json:"cause,omitempty"`
	Listing   []string `json:"listing,omitempty"`
	Stdout    string   `json:"stdout,omitempty"`
	Stderr    string   `json:"stderr,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
	Retryable bool     `json:"retryable"`
}

func newOutcomeJSON(out outcome.Outcome) outcomeJSON {
	return outcomeJSON{
		Kind:      string(out.Kind),
		Artifacts: out.Artifacts,
		Missing:   out.Missing,
		ExitCode:  out.ExitCode,
		Signal:    out.Signal,
		Cause:     out.Cause,
		Listing:   out.Listing,
		Stdout:    out.Stdout.Head,
		Stderr:    out.Stderr.Head,
		ElapsedMS: out.Elapsed.Milliseconds(),
		Retryable: out.Retryable(),
	}
}

type pageJSON struct {
	Page     int     `json:"page"`
	Path     string  `json:"path"`
	Skew     float64 `json:"skew_degrees"`
	Deskewed bool    `json:"deskewed"`
	Lines    int     `json:"lines"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	InkRatio float64 `json:"ink_ratio"`
}

type skippedJSON struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

type reportJSON struct {
	JobID        string        `json:"job_id,omitempty"`
	Source       string        `json:"source"`
	Original     string        `json:"original,omitempty"`
	Pages        []pageJSON    `json:"pages"`
	Skipped      []skippedJSON `json:"skipped,omitempty"`
	EngineInputs []string      `json:"engine_inputs,omitempty"`
	Outcome      *outcomeJSON  `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func newReportJSON(report pipeline.Report, err error) reportJSON {
	out := reportJSON{
		JobID:        report.JobID,
		Source:       report.Source,
		Original:     report.Original,
		Pages:        make([]pageJSON, 0, len(report.Pages)),
		EngineInputs: report.EngineInputs,
	}
	for _, p := range report.Pages {
		out.Pages = append(out.Pages, pageJSON{
			Page:     p.Index + 1,
			Path:     p.Path,
			Skew:     p.Skew.Angle,
			Deskewed: p.Skew.Present,
			Lines:    p.Skew.Lines,
			Width:    p.Page.Width,
			Height:   p.Page.Height,
			InkRatio: p.Page.ForegroundRatio(),
		})
	}
	for _, f := range report.Skipped {
		out.Skipped = append(out.Skipped, skippedJSON{Page: f.Index + 1, Error: f.Err.Error()})
	}
	if report.Outcome.Kind != "" {
		o := newOutcomeJSON(report.Outcome)
		out.Outcome = &o
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func renderPages(w io.Writer, report pipeline.Report) {
	rows := make([][]string, 0, len(report.Pages)+len(report.Skipped))
	for _, p := range report.Pages {
		skewText := "none"
		if p.Skew.Present {
			skewText = fmt.Sprintf("%+.2f°", p.Skew.Angle)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.Index+1),
			fmt.Sprintf("%dx%d", p.Page.Width, p.Page.Height),
			skewText,
			filepath.Base(p.Path),
		})
	}
	for _, f := range report.Skipped {
		rows = append(rows, []string{fmt.Sprintf("%d", f.Index+1), "-", "-", "skipped: " + f.Err.Error()})
	}
	fmt.Fprintln(w, renderTable([]string{"Page", "Size", "Skew", "File"}, rows, []columnAlignment{alignRight, alignRight, alignRight, alignLeft}))
}
