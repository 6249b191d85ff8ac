package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if r.db == nil {
		r.config = config
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	if _, err := r.database(ctx); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if _, err := r.blobStore(ctx); err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupStatus prints every embedded migration and whether it has been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db := r.db
	if db == nil {
		opened, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return err
		}
		defer opened.Close()
		db = opened
	}

	states, err := shared.MigrationStatus(ctx, db)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(states))
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = "applied"
		}
		rows = append(rows, []string{strconv.Itoa(s.Version), s.Name, applied})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"Version", "Name", "Status"}, rows))
}
