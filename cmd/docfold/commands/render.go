package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/build"
	"git.home.luguber.info/inful/docfold/internal/config"
	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/render"
	"git.home.luguber.info/inful/docfold/internal/server"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Slug   string `arg:"" optional:"" help:"Slug of a stored document"`
	File   string `short:"f" type:"existingfile" help:"Compile and render a source file instead of a stored document"`
	Page   bool   `help:"Wrap the output in a standalone HTML page"`
	Output string `short:"o" help:"Write to a file instead of stdout"`
}

func (c *RenderCmd) Run(g *Global, root *CLI) error {
	if (c.Slug == "") == (c.File == "") {
		return errors.ValidationError("give either a slug or --file").Build()
	}
	ctx, cancel := signalContext()
	defer cancel()

	var (
		slug string
		doc  *document.Document
		res  *storage.Resolver
	)
	if c.File != "" {
		cfg, err := root.loadConfigOrDefault(g)
		if err != nil {
			return err
		}
		compiled, err := compileFile(ctx, cfg, c.File)
		if err != nil {
			return err
		}
		slug, doc = compiled.Slug, compiled.Document
		res = &storage.Resolver{AssetRoot: cfg.Media.AssetRoot}
	} else {
		cfg, err := root.loadConfig(g)
		if err != nil {
			return err
		}
		e, err := openEnv(cfg)
		if err != nil {
			return err
		}
		defer e.Close()
		rec, err := e.docs.Get(ctx, c.Slug)
		if err != nil {
			return err
		}
		slug, doc = rec.Slug, rec.Document
		res = e.resolver()
	}

	body, err := render.Walk(doc, &render.HTMLRenderer{PointerURL: res.URL, CopyButton: true})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "create output").WithContext("path", c.Output).Build()
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if c.Page {
		return server.WritePage(out, slug, doc, body)
	}
	_, err = io.WriteString(out, body+"\n")
	return err
}

// loadConfigOrDefault falls back to the defaults when the configuration file
// does not exist, so single files can be compiled without a project.
func (c *CLI) loadConfigOrDefault(g *Global) (*config.Config, error) {
	if _, err := os.Stat(c.Config); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return c.loadConfig(g)
}

// compileFile compiles one file without touching any store. Images resolve
// to asset pointers.
func compileFile(ctx context.Context, cfg *config.Config, file string) (*build.Compiled, error) {
	content, err := os.ReadFile(file) // #nosec G304 - user supplied input file
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read source").WithContext("path", file).Build()
	}
	src := build.Source{Path: sourcePath(cfg.Source.Dir, file), Abs: file}
	return newBuilder(cfg, nil, nil, metrics.NoopRecorder{}, true).Compile(ctx, src, content)
}

// sourcePath is file relative to the source directory, or its base name when
// it lies outside.
func sourcePath(dir, file string) string {
	absDir, err1 := filepath.Abs(dir)
	absFile, err2 := filepath.Abs(file)
	if err1 == nil && err2 == nil {
		if rel, err := filepath.Rel(absDir, absFile); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(file)
}
