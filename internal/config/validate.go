package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("config_version %d is newer than supported version %d", c.Version, CurrentVersion)
	}
	if c.Version < 1 {
		return fmt.Errorf("config_version must be at least 1, got %d", c.Version)
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePresets(); err != nil {
		return err
	}
	if err := c.validateRaster(); err != nil {
		return err
	}
	if err := c.validateCleaning(); err != nil {
		return err
	}
	if err := c.validateSkew(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Batch.Concurrency < 1 {
		return errors.New("batch.concurrency must be at least 1")
	}
	return c.validateNotifications()
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LedgerPath == "" {
		return errors.New("paths.ledger_path must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Executable == "" {
		return errors.New("engine.executable must be set (or export OMRPIPE_AUDIVERIS)")
	}
	if err := ensurePositiveMap(map[string]int{
		"engine.timeout_seconds": c.Engine.TimeoutSeconds,
		"engine.settle_poll_ms":  c.Engine.SettlePollMillis,
		"engine.settle_small_ms": c.Engine.SettleSmallMillis,
		"engine.settle_large_ms": c.Engine.SettleLargeMillis,
	}); err != nil {
		return err
	}
	if c.Engine.SettleThresholdBytes <= 0 {
		return errors.New("engine.settle_threshold_bytes must be positive")
	}
	if c.Engine.SettleLargeMillis < c.Engine.SettleSmallMillis {
		return errors.New("engine.settle_large_ms must not be shorter than engine.settle_small_ms")
	}
	if strings.ContainsAny(c.Engine.OutputExtension, `/\ `) {
		return fmt.Errorf("engine.output_extension %q must be a bare extension", c.Engine.OutputExtension)
	}
	if _, ok := c.Presets[c.Engine.Preset]; !ok {
		return fmt.Errorf("engine.preset %q is not defined (available: %s)", c.Engine.Preset, strings.Join(c.PresetNames(), ", "))
	}
	return nil
}

func (c *Config) validatePresets() error {
	names := c.PresetNames()
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.New("presets: preset names must not be blank")
		}
		preset := c.Presets[name]
		if preset.TimeoutSeconds < 0 {
			return fmt.Errorf("presets.%s.timeout_seconds must not be negative", name)
		}
		keys := make([]string, 0, len(preset.Options))
		for key := range preset.Options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if key == "" || strings.ContainsAny(key, "= \t\n") {
				return fmt.Errorf("presets.%s.options: invalid option name %q", name, key)
			}
			if strings.ContainsAny(preset.Options[key], "\n\r") {
				return fmt.Errorf("presets.%s.options.%s: value must be a single line", name, key)
			}
		}
	}
	return nil
}

func (c *Config) validateRaster() error {
	if c.Raster.DPI < 36 || c.Raster.DPI > 1200 {
		return fmt.Errorf("raster.dpi must be between 36 and 1200, got %d", c.Raster.DPI)
	}
	if c.Raster.MaxBytes <= 0 {
		return errors.New("raster.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateCleaning() error {
	if c.Cleaning.BilateralDiameter <= 0 {
		return errors.New("cleaning.bilateral_diameter must be positive")
	}
	if c.Cleaning.SigmaColor <= 0 || c.Cleaning.SigmaSpace <= 0 {
		return errors.New("cleaning.sigma_color and cleaning.sigma_space must be positive")
	}
	if c.Cleaning.BlockSize < 3 || c.Cleaning.BlockSize%2 == 0 {
		return fmt.Errorf("cleaning.block_size must be odd and at least 3, got %d", c.Cleaning.BlockSize)
	}
	return nil
}

func (c *Config) validateSkew() error {
	if c.Skew.CannyLow <= 0 || c.Skew.CannyHigh <= c.Skew.CannyLow {
		return errors.New("skew.canny_high must be greater than skew.canny_low, both positive")
	}
	if c.Skew.HoughThreshold <= 0 {
		return errors.New("skew.hough_threshold must be positive")
	}
	if c.Skew.BorderValue < 0 || c.Skew.BorderValue > 255 {
		return fmt.Errorf("skew.border_value must be between 0 and 255, got %d", c.Skew.BorderValue)
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.PageFormat {
	case "png", "tiff":
	default:
		return fmt.Errorf("output.page_format must be png or tiff, got %q", c.Output.PageFormat)
	}
	switch c.Output.Bundle {
	case "pdf", "none":
	default:
		return fmt.Errorf("output.bundle must be pdf or none, got %q", c.Output.Bundle)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
