package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/tasks"
)

// DatasetsCreate groups the user's labels and csvfiles into a dataset.
func (r *Runner) DatasetsCreate(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	labelIDs := cmd.StringSlice("label")
	csvfileIDs := cmd.StringSlice("csvfile")

	labels, err := repositories.NewLabelRepository(db).List(ctx, map[string]any{"user_id": user.ID(), "ids": labelIDs})
	if err != nil {
		return err
	}
	for _, id := range labelIDs {
		if !slices.ContainsFunc(labels, func(l *models.Label) bool { return l.ID() == id }) {
			return fmt.Errorf("%w: unknown label %s", shared.ErrInvalidInput, id)
		}
	}

	csvfiles, err := repositories.NewCsvfileRepository(db).List(ctx, map[string]any{"user_id": user.ID(), "ids": csvfileIDs})
	if err != nil {
		return err
	}
	for _, id := range csvfileIDs {
		if !slices.ContainsFunc(csvfiles, func(c *models.Csvfile) bool { return c.ID() == id }) {
			return fmt.Errorf("%w: unknown csvfile %s", shared.ErrInvalidInput, id)
		}
	}

	dataset := models.NewDataset(0, user.ID(), cmd.String("name"), cmd.String("description"), labelIDs, csvfileIDs)
	if err := repositories.NewDatasetRepository(db).Create(ctx, dataset); err != nil {
		return err
	}

	r.logger.Info("dataset created", "id", dataset.ID(), "labels", len(labelIDs), "csvfiles", len(csvfileIDs))
	return r.writePlain("✓ Created dataset %s (%s)\n", dataset.Name(), dataset.ID())
}

// DatasetsList prints the user's datasets.
func (r *Runner) DatasetsList(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	datasets, err := repositories.NewDatasetRepository(db).List(ctx, map[string]any{"user_id": user.ID()})
	if err != nil {
		return err
	}

	views := make([]models.DatasetView, 0, len(datasets))
	for _, d := range datasets {
		views = append(views, models.NewDatasetView(d))
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Name, fmt.Sprint(len(v.Labels)), fmt.Sprint(len(v.Csvfiles))})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"ID", "Name", "Labels", "Csvfiles"}, rows))
}

// DatasetsShow renders one dataset with image counts per label.
func (r *Runner) DatasetsShow(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}
	dataset, err := r.ownedDataset(ctx, cmd, user)
	if err != nil {
		return err
	}

	labels, err := repositories.NewLabelRepository(db).List(ctx, map[string]any{"ids": dataset.LabelIDs(), "include_deleted": true})
	if err != nil {
		return err
	}
	csvfiles, err := repositories.NewCsvfileRepository(db).List(ctx, map[string]any{"ids": dataset.CsvfileIDs()})
	if err != nil {
		return err
	}
	view := models.NewDatasetDetailView(dataset, labels, csvfiles)

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	images := repositories.NewImageRepository(db)
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		n, err := images.Count(ctx, map[string]any{
			"user_id":     user.ID(),
			"label_id":    l.ID(),
			"csvfile_ids": dataset.CsvfileIDs(),
		})
		if err != nil {
			return err
		}
		counts[l.ID()] = n
	}

	md, err := formatter.DatasetToMarkdown(view, counts)
	if err != nil {
		return err
	}
	return r.writePlain("%s", md)
}

// DatasetsExport writes a dataset's bitmaps, and optionally arrays, to a local directory.
func (r *Runner) DatasetsExport(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}
	dataset, err := r.ownedDataset(ctx, cmd, user)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if format != "json" && format != "csv" {
		return fmt.Errorf("%w: --format must be json or csv", shared.ErrInvalidArgument)
	}

	store, err := r.blobStore(ctx)
	if err != nil {
		return err
	}

	exporter := tasks.NewDatasetExporter(
		repositories.NewLabelRepository(db),
		repositories.NewCsvfileRepository(db),
		repositories.NewImageRepository(db),
		store,
		r.logger,
	)

	r.writePlainHeader(fmt.Sprintf("Exporting dataset %s", dataset.Name()))

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := exporter.Export(ctx, progress, dataset, tasks.ExportOpts{
		OutputDir:      cmd.String("output"),
		Arrays:         cmd.Bool("arrays"),
		ManifestFormat: format,
		NumWorkers:     cmd.Int("workers"),
		RateLimit:      cmd.Float("rate"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d/%d images (%s) to %s",
		result.SuccessfulExports, result.TotalImages, formatter.Size(result.Bytes), result.OutputDirectory)
	r.writePlain("  Manifest: %s\n", result.ManifestPath)
	if result.FailedExports > 0 {
		return r.writePlain("  %d images failed, see the manifest for details\n", result.FailedExports)
	}
	return nil
}

// ownedDataset loads the dataset named by the id argument, hiding other users' datasets.
func (r *Runner) ownedDataset(ctx context.Context, cmd *cli.Command, user *models.User) (*models.Dataset, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return nil, fmt.Errorf("%w: dataset id", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	dataset, err := repositories.NewDatasetRepository(db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if dataset.UserID() != user.ID() {
		return nil, fmt.Errorf("%w: dataset %s", shared.ErrNotFound, id)
	}
	return dataset, nil
}
