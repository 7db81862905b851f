package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"omrpipe/internal/config"
	"omrpipe/internal/ledger"
	"omrpipe/internal/outcome"
)

// LedgerProbe reports the current ledger snapshot.
type LedgerProbe struct {
	Path      string
	Available bool
	Summary   ledger.Summary
	Detail    string
}

// ProbeLedger opens the ledger read-mostly and summarizes recorded outcomes.
// A missing database is reported as empty rather than created.
func ProbeLedger(ctx context.Context, cfg *config.Config) LedgerProbe {
	probe := LedgerProbe{Path: cfg.Paths.LedgerPath}
	if _, err := os.Stat(probe.Path); err != nil {
		if os.IsNotExist(err) {
			probe.Detail = "No conversions recorded"
			return probe
		}
		probe.Detail = fmt.Sprintf("stat: %v", err)
		return probe
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, err := ledger.OpenPath(probe.Path)
	if err != nil {
		probe.Detail = err.Error()
		return probe
	}
	defer store.Close()

	summary, err := store.Summarize(probeCtx)
	if err != nil {
		probe.Detail = err.Error()
		return probe
	}
	probe.Available = true
	probe.Summary = summary
	return probe
}

// LedgerDetail renders a display-friendly summary for status UIs.
func (p LedgerProbe) LedgerDetail() string {
	if !p.Available {
		return p.Detail
	}
	if p.Summary.Total == 0 {
		return "No conversions recorded"
	}
	ok := p.Summary.ByKind[outcome.KindSuccess]
	return fmt.Sprintf("%d conversions, %d succeeded, last %s",
		p.Summary.Total, ok, p.Summary.Last.Local().Format("2006-01-02 15:04"))
}
