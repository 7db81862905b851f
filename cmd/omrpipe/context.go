package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"omrpipe/internal/config"
	"omrpipe/internal/ledger"
	"omrpipe/internal/logging"
	"omrpipe/internal/notifications"
	"omrpipe/internal/pipeline"
	"omrpipe/internal/preflight"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openProcessor builds a processor wired to the engine and the ledger. The
// returned closer releases the ledger.
func (c *commandContext) openProcessor(ctx context.Context, preset string) (*pipeline.Processor, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		return nil, nil, fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}
	converter, err := c.converter(preset)
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	proc, err := pipeline.New(cfg, converter,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(store),
		pipeline.WithNotifier(notifications.NewService(cfg)),
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return proc, func() { store.Close() }, nil
}

// converter builds the engine client, optionally for a preset other than the
// configured one.
func (c *commandContext) converter(preset string) (pipeline.Converter, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	if preset = strings.TrimSpace(preset); preset != "" && preset != cfg.Engine.Preset {
		override := *cfg
		override.Engine.Preset = preset
		return pipeline.NewConverter(&override, logger)
	}
	return pipeline.NewConverter(cfg, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
