package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"omrpipe/internal/outcome"
	"omrpipe/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show directories, dependencies, and ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			checks := preflight.RunAll(cmd.Context(), cfg)
			for _, check := range checks {
				lines = append(lines, renderStatusLine(check.Name, checkStatus(check.Passed), check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			rows := make([][]string, 0, 2)
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				state := "ok"
				if !dep.Available {
					state = "missing"
					if dep.Optional {
						state = "optional, missing"
					}
				}
				detail := dep.Detail
				if detail == "" {
					detail = dep.Command
				}
				rows = append(rows, []string{dep.Name, state, detail})
			}
			lines = append(lines, renderTable([]string{"Dependency", "State", "Detail"}, rows, nil))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Engine", colorize)...)
			preset := cfg.Presets[cfg.Engine.Preset]
			presetText := cfg.Engine.Preset
			if preset.Description != "" {
				presetText += " (" + preset.Description + ")"
			}
			lines = append(lines,
				renderStatusLine("Preset", statusInfo, presetText, colorize),
				renderStatusLine("Timeout", statusInfo, fmt.Sprintf("%ds", cfg.PresetTimeoutSeconds(cfg.Engine.Preset)), colorize),
				renderStatusLine("Opus", statusInfo, yesNo(preset.Opus), colorize),
				renderStatusLine("Bundle", statusInfo, cfg.Output.Bundle, colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Ledger", colorize)...)
			probe := preflight.ProbeLedger(cmd.Context(), cfg)
			ledgerKind := statusInfo
			if probe.Available {
				ledgerKind = statusOK
				if probe.Summary.ByKind[outcome.KindCrash]+probe.Summary.ByKind[outcome.KindTimeout] > 0 {
					ledgerKind = statusWarn
				}
			}
			lines = append(lines, renderStatusLine("Conversions", ledgerKind, probe.LedgerDetail(), colorize))
			if probe.Available && probe.Summary.Total > 0 {
				for _, kind := range outcome.Kinds {
					if n := probe.Summary.ByKind[kind]; n > 0 {
						lines = append(lines, renderStatusLine(outcomeLabel(kind), statusInfo, fmt.Sprintf("%d", n), colorize))
					}
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
