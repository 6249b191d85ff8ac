package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/tasks"
)

// CsvfilesCreate registers a CSV layout for the user.
func (r *Runner) CsvfilesCreate(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	csvfile := models.NewCsvfile(
		0, user.ID(), cmd.String("name"), cmd.String("description"),
		cmd.Int("labelcol"), cmd.Int("imgcolstart"), cmd.Int("imgcolend"),
	)
	if err := repositories.NewCsvfileRepository(db).Create(ctx, csvfile); err != nil {
		return err
	}

	r.logger.Info("csvfile created", "id", csvfile.ID(), "name", csvfile.Name())
	return r.writePlain("✓ Created csvfile %s (%s)\n", csvfile.Name(), csvfile.ID())
}

// CsvfilesList prints the user's csvfiles.
func (r *Runner) CsvfilesList(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	csvfiles, err := repositories.NewCsvfileRepository(db).List(ctx, map[string]any{
		"user_id":       user.ID(),
		"assigned_only": cmd.Bool("assigned-only"),
	})
	if err != nil {
		return err
	}

	views := make([]models.CsvfileView, 0, len(csvfiles))
	for _, c := range csvfiles {
		views = append(views, models.NewCsvfileView(c))
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID, v.Name, strconv.Itoa(v.LabelCol),
			fmt.Sprintf("%d-%d", v.ImgColStart, v.ImgColEnd), v.File,
		})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"ID", "Name", "Label", "Pixels", "File"}, rows))
}

// CsvfilesUpload stores a local CSV as a csvfile's source and converts its rows.
func (r *Runner) CsvfilesUpload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: CSV path", shared.ErrMissingArgument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if cmd.Bool("tui") {
		return r.uploadTUI(ctx, cmd, path, data)
	}

	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id is required without --tui", shared.ErrMissingArgument)
	}

	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}
	csvfile, err := repositories.NewCsvfileRepository(db).Get(ctx, id)
	if err != nil {
		return err
	}
	if csvfile.UserID() != user.ID() {
		return fmt.Errorf("%w: csvfile %s", shared.ErrNotFound, id)
	}

	uploader, err := r.uploader(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Uploading %s into %s", filepath.Base(path), csvfile.Name()))

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ConvertRows:
				if update.Step == update.Total || update.Step%100 == 0 {
					r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
				}
			default:
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()

	result, err := uploader.Upload(ctx, csvfile, filepath.Base(path), data, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	return r.writePlainln("✓ Converted %d rows into %dx%d images (%s in %v)",
		result.Rows, result.Side, result.Side, formatter.Size(int64(result.Bytes)), result.Elapsed.Round(1e6))
}
