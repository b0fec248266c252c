// Package commands implements the docfold subcommands.
package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docfold/internal/build"
	"git.home.luguber.info/inful/docfold/internal/config"
	"git.home.luguber.info/inful/docfold/internal/docstore"
	"git.home.luguber.info/inful/docfold/internal/linkpreview"
	"git.home.luguber.info/inful/docfold/internal/media"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// Global is passed to every subcommand's Run.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command with its global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docfold.yaml" env:"DOCFOLD_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Compile  CompileCmd  `cmd:"" help:"Compile the source directory into the document store"`
	Render   RenderCmd   `cmd:"" help:"Render a stored document or a source file to HTML"`
	Inspect  InspectCmd  `cmd:"" help:"Compile a source file and print its compiled tree"`
	Validate ValidateCmd `cmd:"" help:"Load and validate every stored document"`
	Watch    WatchCmd    `cmd:"" help:"Recompile documents as their sources change"`
	Serve    ServeCmd    `cmd:"" help:"Serve stored documents over HTTP"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; it installs a default logger until
// the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = setupLogging(config.LoggingConfig{Level: config.LogLevelInfo, Format: config.LogFormatText}, c.Verbose)
	return nil
}

// loadConfig reads the configuration and reconfigures logging from it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = setupLogging(cfg.Logging, c.Verbose)
	return cfg, nil
}

func setupLogging(lc config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// env holds the stores and metrics shared by commands that touch the store.
type env struct {
	cfg      *config.Config
	docs     *docstore.SQLiteStore
	objects  *storage.FSStore
	registry *prom.Registry
	recorder metrics.Recorder
}

func openEnv(cfg *config.Config) (*env, error) {
	docs, err := docstore.NewSQLiteStore(cfg.Output.Database)
	if err != nil {
		return nil, err
	}
	objects, err := storage.NewFSStore(cfg.Output.Objects)
	if err != nil {
		_ = docs.Close()
		return nil, err
	}
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &env{
		cfg:      cfg,
		docs:     docs,
		objects:  objects,
		registry: reg,
		recorder: metrics.NewPrometheusRecorder(reg),
	}, nil
}

func (e *env) Close() {
	if err := e.docs.Close(); err != nil {
		slog.Warn("Failed to close document store", "error", err)
	}
	_ = e.objects.Close()
}

// builder wires the image resolver and, when enabled, the link previewer.
func (e *env) builder(force bool) *build.Builder {
	return newBuilder(e.cfg, e.docs, e.objects, e.recorder, force)
}

func (e *env) resolver() *storage.Resolver {
	return &storage.Resolver{Objects: e.objects, AssetRoot: e.cfg.Media.AssetRoot}
}

func newBuilder(cfg *config.Config, docs build.DocumentStore, objects storage.ObjectStore, rec metrics.Recorder, force bool) *build.Builder {
	opts := []build.Option{
		build.WithRecorder(rec),
		build.WithForce(force),
		build.WithImageResolver(&media.Resolver{
			Root:        cfg.Media.AssetRoot,
			Docs:        cfg.Source.Dir,
			Objects:     objects,
			MaxBytes:    cfg.Media.MaxBytes,
			InlineBelow: cfg.Media.InlineBelow,
		}),
	}
	if cfg.LinkPreview.Enabled {
		opts = append(opts, build.WithLinkPreviewer(linkpreview.New(cfg.LinkPreview, linkpreview.WithRecorder(rec))))
	}
	return build.New(cfg, docs, objects, opts...)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
