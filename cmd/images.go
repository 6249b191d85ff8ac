package main

import (
	"context"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
)

// ImagesList prints the user's images, optionally filtered by csvfile and label.
func (r *Runner) ImagesList(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	images, err := repositories.NewImageRepository(db).List(ctx, map[string]any{
		"user_id":    user.ID(),
		"csvfile_id": cmd.String("csvfile"),
		"label_id":   cmd.String("label"),
		"limit":      cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	views := make([]models.ImageView, 0, len(images))
	for _, i := range images {
		views = append(views, models.NewImageView(i))
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(views, cmd.Bool("pretty"))
	case cmd.Bool("csv"):
		data, err := formatter.ImagesToCSV(views)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Name, strconv.Itoa(v.Row), v.Label, v.Image})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"Name", "Row", "Label", "Image"}, rows))
}
