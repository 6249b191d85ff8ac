package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/shared"
)

func main() {
	configPath := os.Getenv("IMGSET_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	var loadErr error
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			loadErr = err
		}
	}

	logger, err := shared.LoggerFromConfig(config.Log)
	if err != nil {
		logger = shared.NewLogger(nil)
		logger.Warn("invalid log configuration, logging to stderr", "error", err)
	}
	if loadErr != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", loadErr)
	}

	runner := NewRunner(RunnerOpts{Config: config, Logger: logger})

	app := &cli.Command{
		Name:     "imgset",
		Usage:    "Convert labeled CSV files into grayscale image datasets",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err = app.Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close resources", "error", cerr)
	}
	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
