package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/coocood/freecache"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/storage"
	"github.com/desertthunder/imgset/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and blob store are opened on first use unless injected through [RunnerOpts].
type Runner struct {
	config *shared.Config
	db     *sql.DB
	store  *storage.Store
	logger *log.Logger
	output io.Writer

	ownsDB    bool
	ownsStore bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	DB     *sql.DB
	Store  *storage.Store
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		db:     opts.DB,
		store:  opts.Store,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, usersCommand, tokenCommand, labelsCommand, csvfilesCommand, datasetsCommand, imagesCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database and store if the runner opened them.
func (r *Runner) Close() error {
	var errs []error
	if r.ownsStore && r.store != nil {
		errs = append(errs, r.store.Close())
		r.store = nil
	}
	if r.ownsDB && r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

// database opens and migrates the configured database once.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(r.config.Database.Path, ":memory:") && r.config.Database.MaxOpenConns > 0 {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}
	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db, r.ownsDB = db, true
	return db, nil
}

// blobStore opens the configured bucket once.
func (r *Runner) blobStore(ctx context.Context) (*storage.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, err := storage.Open(ctx, r.config.Storage.BucketURL, r.logger)
	if err != nil {
		return nil, err
	}
	r.store, r.ownsStore = store, true
	return store, nil
}

// user resolves the --user flag (an email address) to an account.
func (r *Runner) user(ctx context.Context, cmd *cli.Command) (*models.User, *sql.DB, error) {
	email := cmd.String("user")
	if email == "" {
		return nil, nil, fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return nil, nil, err
	}

	user, err := repositories.NewUserRepository(db).GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	return user, db, nil
}

// uploader builds the upload pipeline over the runner's database and store.
func (r *Runner) uploader(ctx context.Context) (*tasks.SourceUploader, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	store, err := r.blobStore(ctx)
	if err != nil {
		return nil, err
	}

	var cache *freecache.Cache
	if r.config.Cache.LabelCacheBytes > 0 {
		cache = freecache.NewCache(r.config.Cache.LabelCacheBytes)
	}

	images := repositories.NewImageRepository(db)
	resolver := tasks.NewLabelResolver(repositories.NewLabelRepository(db), cache, r.config.Cache.LabelTTLSeconds)
	upserter := tasks.NewImageUpserter(db, images, store, r.logger)
	engine := tasks.NewUploadEngine(resolver, upserter, r.logger)
	return tasks.NewSourceUploader(store, repositories.NewCsvfileRepository(db), engine, r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
