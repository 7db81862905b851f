package pipeline

import (
	"log/slog"
	"time"

	"omrpipe/internal/config"
	"omrpipe/internal/services/audiveris"
)

// NewConverter builds the engine client for the configured preset.
func NewConverter(cfg *config.Config, logger *slog.Logger) (*audiveris.Client, error) {
	name := cfg.Engine.Preset
	options, err := cfg.PresetOptions(name)
	if err != nil {
		return nil, err
	}
	preset := audiveris.Preset{
		Name:    name,
		Options: options,
		Opus:    cfg.Presets[name].Opus,
		Timeout: time.Duration(cfg.PresetTimeoutSeconds(name)) * time.Second,
	}
	return audiveris.New(cfg.Engine.Executable, preset,
		audiveris.WithLogger(logger),
		audiveris.WithExtension(cfg.Engine.OutputExtension),
		audiveris.WithJVMOptions(cfg.Engine.JVMOptions),
		audiveris.WithOutputLimit(cfg.Engine.OutputLimit),
		audiveris.WithSettlePolicy(audiveris.SettlePolicy{
			Interval:  time.Duration(cfg.Engine.SettlePollMillis) * time.Millisecond,
			SmallWait: time.Duration(cfg.Engine.SettleSmallMillis) * time.Millisecond,
			LargeWait: time.Duration(cfg.Engine.SettleLargeMillis) * time.Millisecond,
			Threshold: cfg.Engine.SettleThresholdBytes,
		}),
	)
}
