package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/server"
)

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if addr := cmd.String("addr"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		if r.config.Server.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", port, err)
		}
		r.config.Server.Host = host
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	store, err := r.blobStore(ctx)
	if err != nil {
		return err
	}

	srv, err := server.New(r.config, db, store, r.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
