package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeOutput()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() {
	if value, ok := os.LookupEnv("OMRPIPE_AUDIVERIS"); ok && strings.TrimSpace(value) != "" {
		c.Engine.Executable = strings.TrimSpace(value)
	}
	c.Engine.Executable = strings.TrimSpace(c.Engine.Executable)
	if expanded, err := expandPath(c.Engine.Executable); err == nil && strings.ContainsRune(c.Engine.Executable, os.PathSeparator) {
		c.Engine.Executable = expanded
	}
	c.Engine.Preset = strings.TrimSpace(c.Engine.Preset)
	if c.Engine.Preset == "" {
		c.Engine.Preset = defaultPreset
	}
	c.Engine.OutputExtension = strings.TrimPrefix(strings.TrimSpace(c.Engine.OutputExtension), ".")
	if c.Engine.OutputExtension == "" {
		c.Engine.OutputExtension = defaultOutputExtension
	}
	if c.Engine.OutputLimit <= 0 {
		c.Engine.OutputLimit = defaultOutputLimit
	}
	c.Engine.JVMOptions = strings.TrimSpace(c.Engine.JVMOptions)
}

func (c *Config) normalizeOutput() {
	c.Output.PageFormat = strings.ToLower(strings.TrimSpace(c.Output.PageFormat))
	if c.Output.PageFormat == "tif" {
		c.Output.PageFormat = "tiff"
	}
	c.Output.Bundle = strings.ToLower(strings.TrimSpace(c.Output.Bundle))
	if c.Output.Bundle == "" {
		c.Output.Bundle = "pdf"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
