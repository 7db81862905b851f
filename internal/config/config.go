package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// CurrentVersion is the config_version this build understands.
const CurrentVersion = 1

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Engine contains configuration for the Audiveris subprocess.
type Engine struct {
	Executable      string `toml:"executable"`
	Preset          string `toml:"preset"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	OutputExtension string `toml:"output_extension"`
	// JVMOptions is exported to the engine as JAVA_OPTS (heap limits and the like).
	JVMOptions string `toml:"jvm_options"`
	// OutputLimit bounds how many bytes of stdout and stderr are retained.
	OutputLimit int `toml:"output_limit"`
	// Settle settings bound the artifact poll that runs after the process exits.
	SettlePollMillis     int   `toml:"settle_poll_ms"`
	SettleSmallMillis    int   `toml:"settle_small_ms"`
	SettleLargeMillis    int   `toml:"settle_large_ms"`
	SettleThresholdBytes int64 `toml:"settle_threshold_bytes"`
}

// Preset is a named, validated set of engine tunables.
type Preset struct {
	Description    string            `toml:"description"`
	Opus           bool              `toml:"opus"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	Options        map[string]string `toml:"options"`
}

// Raster contains configuration for page rasterization.
type Raster struct {
	DPI      int   `toml:"dpi"`
	MaxBytes int64 `toml:"max_bytes"`
}

// Cleaning contains denoise and binarization parameters.
type Cleaning struct {
	BilateralDiameter int     `toml:"bilateral_diameter"`
	SigmaColor        float64 `toml:"sigma_color"`
	SigmaSpace        float64 `toml:"sigma_space"`
	BlockSize         int     `toml:"block_size"`
	Offset            float64 `toml:"offset"`
}

// Skew contains edge, line detection, and rotation parameters.
type Skew struct {
	CannyLow       float64 `toml:"canny_low"`
	CannyHigh      float64 `toml:"canny_high"`
	HoughThreshold int     `toml:"hough_threshold"`
	BorderValue    int     `toml:"border_value"`
}

// Output contains configuration for cleaned page artifacts.
type Output struct {
	PageFormat string `toml:"page_format"`
	Bundle     string `toml:"bundle"`
}

// Batch contains configuration for concurrent document processing.
type Batch struct {
	Concurrency int `toml:"concurrency"`
}

// Notifications contains configuration for ntfy delivery.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// NotifySuccess also announces successful conversions, not only failures.
	NotifySuccess bool `toml:"notify_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for omrpipe.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and ledger locations
//   - Engine: Audiveris executable, timeout, and artifact settle policy
//   - Raster: rendering resolution and input size limit
//   - Cleaning: bilateral denoise and adaptive threshold parameters
//   - Skew: Canny/Hough parameters and deskew border fill
//   - Output: cleaned page format and bundling mode
//   - Batch: concurrent document limit
//   - Notifications: optional ntfy topic for job results
//   - Logging: log format and level
//   - Presets: named engine option sets
type Config struct {
	Version       int               `toml:"config_version"`
	Paths         Paths             `toml:"paths"`
	Engine        Engine            `toml:"engine"`
	Raster        Raster            `toml:"raster"`
	Cleaning      Cleaning          `toml:"cleaning"`
	Skew          Skew              `toml:"skew"`
	Output        Output            `toml:"output"`
	Batch         Batch             `toml:"batch"`
	Notifications Notifications     `toml:"notifications"`
	Logging       Logging           `toml:"logging"`
	Presets       map[string]Preset `toml:"presets"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "omrpipe", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("omrpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data layout and log directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.OriginalsDir(), c.ProcessedDir(), c.ScoresDir(), c.Paths.LogDir}
	if dir := filepath.Dir(c.Paths.LedgerPath); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OriginalsDir holds archived source documents.
func (c *Config) OriginalsDir() string {
	return filepath.Join(c.Paths.DataDir, "originals")
}

// ProcessedDir holds cleaned page images and bundles.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.Paths.DataDir, "processed")
}

// ScoresDir holds engine output directories.
func (c *Config) ScoresDir() string {
	return filepath.Join(c.Paths.DataDir, "xmlmusic")
}

// PresetNames returns the configured preset names in sorted order.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetOptions returns a fresh copy of the engine options for the named preset.
func (c *Config) PresetOptions(name string) (map[string]string, error) {
	preset, ok := c.Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(c.PresetNames(), ", "))
	}
	options := make(map[string]string, len(preset.Options))
	for key, value := range preset.Options {
		options[key] = value
	}
	return options, nil
}

// PresetTimeoutSeconds returns the preset timeout, falling back to the engine default.
func (c *Config) PresetTimeoutSeconds(name string) int {
	if preset, ok := c.Presets[name]; ok && preset.TimeoutSeconds > 0 {
		return preset.TimeoutSeconds
	}
	return c.Engine.TimeoutSeconds
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
