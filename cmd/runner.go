package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/repositories"
	"github.com/desertthunder/plmerge/internal/services"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	fs         afero.Fs
	fetcher    services.Fetcher
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Fs         afero.Fs
	Fetcher    services.Fetcher // Default: an HTTP fetcher built from the [http] config
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		fs:         opts.Fs,
		fetcher:    opts.Fetcher,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger, e.g. while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, generateCommand, batchCommand, serveCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// newDownloader builds a downloader from the [downloader] and [http] config. The returned stop
// function closes it and halts the network monitor.
func (r *Runner) newDownloader(ctx context.Context) (*tasks.MediaFileDownloader, func()) {
	monitorCtx, stopMonitor := context.WithCancel(ctx)

	fetcher := r.fetcher
	if fetcher == nil {
		opts := services.Options{
			UserAgent:           r.config.HTTP.UserAgent,
			MaxIdleConnsPerHost: r.config.HTTP.MaxIdleConnsPerHost,
			Logger:              r.logger,
		}
		if r.config.Downloader.WatchNetwork {
			monitor := services.NewInterfaceMonitor(r.config.Downloader.Interval(), r.logger)
			go monitor.Run(monitorCtx)
			opts.Monitor = monitor
		}
		fetcher = services.NewHTTPFetcher(r.fs, opts)
	}

	d := tasks.NewMediaFileDownloader(tasks.Options{
		Fs:              r.fs,
		Fetcher:         fetcher,
		StagingDir:      r.config.Downloader.StagingDir,
		UnifiedFilename: r.config.Downloader.UnifiedFilename,
		IOWorkers:       r.config.Downloader.IOWorkers,
		Logger:          r.logger,
	})

	return d, func() {
		d.Close()
		stopMonitor()
	}
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// openHistory returns a recorder for generation history. History is optional: when the database
// cannot be opened the recorder does nothing.
func (r *Runner) openHistory() (*repositories.GenerationRepository, *repositories.JobRecorder, func()) {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("generation history disabled", "path", r.config.Database.Path, "error", err)
		return nil, repositories.NewJobRecorder(nil, r.logger), func() {}
	}

	repo := repositories.NewGenerationRepository(db)
	return repo, repositories.NewJobRecorder(repo, r.logger), func() { db.Close() }
}

func (r *Runner) recordKeys() models.RecordKeys {
	keys := models.DefaultRecordKeys()
	cfg := r.config.Downloader
	if cfg.SourcesKey != "" {
		keys.Sources = cfg.SourcesKey
	}
	if cfg.URLKey != "" {
		keys.URL = cfg.URLKey
	}
	if cfg.PathKey != "" {
		keys.Path = cfg.PathKey
	}
	if cfg.PartialKey != "" {
		keys.Partial = cfg.PartialKey
	}
	return keys
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
