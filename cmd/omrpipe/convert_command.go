package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omrpipe/internal/config"
	"omrpipe/internal/services/audiveris"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var preset string
	var timeout time.Duration
	var options []string
	var opus bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "convert <image-or-pdf>...",
		Short: "Run the engine on already cleaned inputs",
		Long: "Convert hands the inputs to Audiveris unchanged and reports the classified outcome.\n" +
			"The command exits non-zero unless the score artifact was produced.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outDir) == "" {
				return errors.New("--out is required")
			}
			target, err := config.ExpandPath(outDir)
			if err != nil {
				return err
			}
			job := audiveris.Job{OutputDir: target, Timeout: timeout}
			for _, arg := range args {
				input, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				job.Inputs = append(job.Inputs, input)
			}
			if job.Options, err = parseOptions(options); err != nil {
				return err
			}
			if cmd.Flags().Changed("opus") {
				if job.Options == nil {
					job.Options = map[string]string{}
				}
				job.Options[audiveris.OpusOption] = fmt.Sprintf("%t", opus)
			}

			converter, err := ctx.converter(preset)
			if err != nil {
				return err
			}
			result, err := converter.Convert(cmd.Context(), job)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, newOutcomeJSON(result)); err != nil {
					return err
				}
			} else {
				renderOutcome(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			}
			return result.Err()
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Engine output directory")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Engine preset (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Wall-clock bound for the engine (default from preset)")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Engine option override as key=value (repeatable)")
	cmd.Flags().BoolVar(&opus, "opus", false, "Bundle all movements into one opus artifact")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the outcome as JSON")
	return cmd
}

func parseOptions(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	options := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("invalid --option %q (want key=value)", value)
		}
		options[key] = strings.TrimSpace(val)
	}
	return options, nil
}
