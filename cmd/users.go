package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/server"
)

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UsersCreate creates an account.
func (r *Runner) UsersCreate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	user := models.NewUser(0, cmd.String("email"), cmd.String("name"))
	if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
		return err
	}

	r.logger.Info("user created", "id", user.ID(), "email", user.Email())
	return r.writePlain("✓ Created user %s (%s)\n", user.Email(), user.ID())
}

// UsersList prints every account.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	users, err := repositories.NewUserRepository(db).List(ctx, map[string]any{})
	if err != nil {
		return err
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{ID: u.ID(), Email: u.Email(), Name: u.Name()})
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Email, v.Name})
	}
	return r.writePlain("%s\n", formatter.Table([]string{"ID", "Email", "Name"}, rows))
}

// TokenIssue prints a signed bearer token for the user.
func (r *Runner) TokenIssue(ctx context.Context, cmd *cli.Command) error {
	user, _, err := r.user(ctx, cmd)
	if err != nil {
		return err
	}

	ttl := cmd.Duration("ttl")
	if ttl == 0 {
		if ttl, err = r.config.Auth.TTL(); err != nil {
			return err
		}
	}

	token, err := server.IssueToken(r.config.Auth.Secret, user.ID(), ttl)
	if err != nil {
		return err
	}

	if ttl > 0 {
		r.logger.Info("token issued", "user", user.Email(), "expires", time.Now().Add(ttl).Format(time.RFC3339))
	} else {
		r.logger.Info("token issued", "user", user.Email(), "expires", "never")
	}
	return r.writePlain("%s\n", token)
}
