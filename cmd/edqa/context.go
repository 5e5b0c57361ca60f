package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// commandContext lazily loads configuration shared by subcommands.
type commandContext struct {
	envFile  *string
	logLevel *string

	envLoaded bool
	cfg       *config.Config
}

func newCommandContext(envFile, logLevel *string) *commandContext {
	return &commandContext{envFile: envFile, logLevel: logLevel}
}

func (c *commandContext) loadEnv() {
	if c.envLoaded {
		return
	}
	c.envLoaded = true
	path := strings.TrimSpace(*c.envFile)
	if path == "" {
		return
	}
	// Variables already in the environment win over the file.
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load %s: %v", path, err)
	}
}

func (c *commandContext) initLogging() {
	c.loadEnv()
	level := strings.TrimSpace(*c.logLevel)
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	log.InitLogger(log.ParseLevel(level))
}

// ensureConfig builds the configuration from the environment and the
// runtime settings file, if one exists.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	c.loadEnv()

	var opts []config.Option
	settingsPath := config.RuntimeSettingsFilePath()
	settings, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		log.Info("Loaded runtime settings from %s", settingsPath)
		opts = append(opts, config.WithRuntimeSettings(settings))
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("load runtime settings: %w", err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}
