// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Email of the owning user",
		Required: true,
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show which migrations have been applied",
				Action: r.SetupStatus,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address, overrides [server] host and port"},
		},
		Action: r.Serve,
	}
}

// usersCommand manages accounts.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage user accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
				},
				Action: r.UsersCreate,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  outputFlags(),
				Action: r.UsersList,
			},
		},
	}
}

// tokenCommand issues API tokens.
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage API bearer tokens",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a bearer token for a user",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime, overrides [auth] token_ttl"},
				},
				Action: r.TokenIssue,
			},
		},
	}
}

// labelsCommand manages labels.
func labelsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "labels",
		Usage: "Manage labels",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a label",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     []cli.Flag{userFlag()},
				Action:    r.LabelsCreate,
			},
			{
				Name:  "list",
				Usage: "List labels, name descending",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "assigned-only", Usage: "Only labels used by a dataset"},
				}, outputFlags()...),
				Action: r.LabelsList,
			},
		},
	}
}

// csvfilesCommand manages csvfiles and uploads.
func csvfilesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "csvfiles",
		Aliases: []string{"csv"},
		Usage:   "Manage CSV sources and convert them into images",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Register a CSV layout",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Csvfile name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Free-form description"},
					&cli.IntFlag{Name: "labelcol", Usage: "Zero-based label column"},
					&cli.IntFlag{Name: "imgcolstart", Usage: "First pixel column, zero-based", Required: true},
					&cli.IntFlag{Name: "imgcolend", Usage: "Last pixel column, inclusive", Required: true},
				},
				Action: r.CsvfilesCreate,
			},
			{
				Name:  "list",
				Usage: "List csvfiles, name descending",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "assigned-only", Usage: "Only csvfiles used by a dataset"},
				}, outputFlags()...),
				Action: r.CsvfilesList,
			},
			{
				Name:      "upload",
				Usage:     "Upload a CSV file and convert every row into an image",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "id", Usage: "Csvfile ID (optional with --tui)"},
					&cli.BoolFlag{Name: "tui", Usage: "Pick the csvfile and watch progress interactively"},
				},
				Action: r.CsvfilesUpload,
			},
		},
	}
}

// datasetsCommand manages datasets.
func datasetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "datasets",
		Usage: "Group labels and csvfiles into datasets",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a dataset",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Dataset name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Free-form description"},
					&cli.StringSliceFlag{Name: "label", Usage: "Label ID, repeatable"},
					&cli.StringSliceFlag{Name: "csvfile", Usage: "Csvfile ID, repeatable"},
				},
				Action: r.DatasetsCreate,
			},
			{
				Name:   "list",
				Usage:  "List datasets, name descending",
				Flags:  append([]cli.Flag{userFlag()}, outputFlags()...),
				Action: r.DatasetsList,
			},
			{
				Name:      "show",
				Usage:     "Show a dataset with its labels, csvfiles and image counts",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     append([]cli.Flag{userFlag()}, outputFlags()...),
				Action:    r.DatasetsShow,
			},
			{
				Name:      "export",
				Usage:     "Write a dataset's images to a directory, one folder per label",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.BoolFlag{Name: "arrays", Usage: "Also write normalized arrays"},
					&cli.StringFlag{Name: "format", Usage: "Manifest format: json or csv", Value: "json"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent workers", Value: 4},
					&cli.FloatFlag{Name: "rate", Usage: "Blob reads per second", Value: 50},
				},
				Action: r.DatasetsExport,
			},
		},
	}
}

// imagesCommand lists converted images.
func imagesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "images",
		Usage: "Inspect converted images",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List images, name descending",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "csvfile", Usage: "Filter by csvfile ID"},
					&cli.StringFlag{Name: "label", Usage: "Filter by label ID"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of images", Value: 100},
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
				}, outputFlags()...),
				Action: r.ImagesList,
			},
		},
	}
}
