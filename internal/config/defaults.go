package config

const (
	defaultDataDir              = "~/.local/share/omrpipe"
	defaultLogDir               = "~/.local/share/omrpipe/logs"
	defaultLedgerPath           = "~/.local/share/omrpipe/ledger.db"
	defaultExecutable           = "/app/audiveris/build/install/audiveris/bin/audiveris"
	defaultPreset               = "default"
	defaultTimeoutSeconds       = 600
	defaultOutputExtension      = "mxl"
	defaultOutputLimit          = 2000
	defaultSettlePollMillis     = 100
	defaultSettleSmallMillis    = 500
	defaultSettleLargeMillis    = 2000
	defaultSettleThresholdBytes = 1 << 20
	defaultRasterDPI            = 300
	defaultRasterMaxBytes       = 10 << 20
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Version: CurrentVersion,
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Engine: Engine{
			Executable:           defaultExecutable,
			Preset:               defaultPreset,
			TimeoutSeconds:       defaultTimeoutSeconds,
			OutputExtension:      defaultOutputExtension,
			OutputLimit:          defaultOutputLimit,
			SettlePollMillis:     defaultSettlePollMillis,
			SettleSmallMillis:    defaultSettleSmallMillis,
			SettleLargeMillis:    defaultSettleLargeMillis,
			SettleThresholdBytes: defaultSettleThresholdBytes,
		},
		Raster: Raster{
			DPI:      defaultRasterDPI,
			MaxBytes: defaultRasterMaxBytes,
		},
		Cleaning: Cleaning{
			BilateralDiameter: 9,
			SigmaColor:        75,
			SigmaSpace:        75,
			BlockSize:         11,
			Offset:            2,
		},
		Skew: Skew{
			CannyLow:       50,
			CannyHigh:      150,
			HoughThreshold: 200,
			BorderValue:    255,
		},
		Output: Output{
			PageFormat: "png",
			Bundle:     "pdf",
		},
		Batch: Batch{
			Concurrency: 2,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: 10,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Presets: builtinPresets(),
	}
}

func builtinPresets() map[string]Preset {
	return map[string]Preset{
		"default": {
			Description: "Engine defaults, single movement per input",
		},
		"fast": {
			Description:    "Skip slow recognition passes for quick drafts",
			TimeoutSeconds: 300,
			Options: map[string]string{
				"org.audiveris.omr.sheet.ProcessingSwitches.defaultSwitches.keepGrayImages": "false",
				"org.audiveris.omr.text.Language.defaultSpecification":                      "eng",
			},
		},
		"high-recall": {
			Description:    "Lower grade thresholds to recover faint symbols",
			TimeoutSeconds: 1800,
			Options: map[string]string{
				"org.audiveris.omr.classifier.SampleRepository.minGrade": "0.1",
				"org.audiveris.omr.sheet.Scale.minInterline":             "8",
			},
		},
		"opus": {
			Description: "Bundle every movement into a single opus file",
			Opus:        true,
			Options: map[string]string{
				"org.audiveris.omr.sheet.BookManager.useCompression": "true",
			},
		},
	}
}
