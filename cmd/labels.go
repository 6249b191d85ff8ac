package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
)

// LabelsCreate adds a label for the user.
func (r *Runner) LabelsCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: label name", shared.ErrMissingArgument)
	}

	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	label := models.NewLabel(0, user.ID(), name)
	if err := repositories.NewLabelRepository(db).Create(ctx, label); err != nil {
		return err
	}

	r.logger.Info("label created", "id", label.ID(), "name", label.Name())
	return r.writePlain("✓ Created label %s (%s)\n", label.Name(), label.ID())
}

// LabelsList prints the user's labels.
func (r *Runner) LabelsList(ctx context.Context, cmd *cli.Command) error {
	user, db, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	labels, err := repositories.NewLabelRepository(db).List(ctx, map[string]any{
		"user_id":       user.ID(),
		"assigned_only": cmd.Bool("assigned-only"),
	})
	if err != nil {
		return err
	}

	views := make([]models.LabelView, 0, len(labels))
	for _, l := range labels {
		views = append(views, models.NewLabelView(l))
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Name})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"ID", "Name"}, rows))
}
