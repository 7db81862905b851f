package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"omrpipe/internal/config"
	"omrpipe/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[raster]\ndpi = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "raster.dpi") {
		t.Fatalf("expected raster.dpi error, got %v", err)
	}
}

func TestConfigPresetsMarksSelection(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPreset("choir", config.Preset{
		Description:    "Vocal scores",
		TimeoutSeconds: 90,
		Options:        map[string]string{"org.audiveris.omr.text.Language.defaultSpecification": "lat"},
	}))

	out, _, err := runCLI(t, []string{"config", "presets"}, env.configPath)
	if err != nil {
		t.Fatalf("config presets: %v", err)
	}
	requireContains(t, out, "choir *")
	requireContains(t, out, "Vocal scores")
	requireContains(t, out, "90s")
	defaults := config.Default()
	for _, name := range defaults.PresetNames() {
		requireContains(t, out, name)
	}
}
