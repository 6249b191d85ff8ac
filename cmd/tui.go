package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/tasks"
	"github.com/desertthunder/imgset/internal/ui"
)

// uploadTUI picks a csvfile and converts data interactively.
func (r *Runner) uploadTUI(ctx context.Context, cmd *cli.Command, path string, data []byte) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/imgset-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath, r.config.Log.MaxSize, r.config.Log.MaxAge)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}
	uploader, err := r.uploader(ctx)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	model := ui.NewModel(ctx, ui.Options{
		UserID:   user.ID(),
		Source:   path,
		Csvfiles: repositories.NewCsvfileRepository(db),
		Selected: cmd.String("id"),
		Upload: func(ctx context.Context, csvfile *models.Csvfile, progress chan<- tasks.ProgressUpdate) (*tasks.UploadResult, error) {
			return uploader.Upload(ctx, csvfile, name, data, progress)
		},
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
