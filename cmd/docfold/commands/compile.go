package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docfold/internal/build"
	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/render"
	"git.home.luguber.info/inful/docfold/internal/server"
)

// CompileCmd implements the 'compile' command.
type CompileCmd struct {
	Force bool     `short:"f" help:"Recompile documents whose source is unchanged"`
	GC    bool     `help:"Remove stored objects no document references"`
	Paths []string `arg:"" optional:"" help:"Source-relative paths to recompile (default: the whole source directory)"`
}

func (c *CompileCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if c.GC {
		cfg.Build.GC = true
	}
	e, err := openEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	b := e.builder(c.Force)
	var report *build.Report
	if len(c.Paths) > 0 {
		report, err = b.BuildPaths(ctx, c.Paths)
	} else {
		report, err = b.Build(ctx)
	}
	if err != nil {
		return err
	}
	printReport(report)

	if cfg.Output.HTMLDir != "" {
		if err := exportHTML(ctx, e, cfg.Output.HTMLDir, report); err != nil {
			return err
		}
	}
	return reportError(report)
}

func printReport(r *build.Report) {
	fmt.Printf("Build %s: %s in %s\n", r.BuildID, r.Outcome, r.Duration.Round(1e6))
	fmt.Printf("  compiled %d, warnings %d, unchanged %d, failed %d, removed %d, collected %d\n",
		r.Count(metrics.ResultSuccess), r.Count(metrics.ResultWarning), r.Count(metrics.ResultSkipped),
		r.Count(metrics.ResultFailed), len(r.Removed), r.Collected)
	for _, res := range r.Results {
		for _, w := range res.Warnings {
			fmt.Printf("  warning %s: %v\n", res.Path, w)
		}
	}
	for _, f := range r.Failures() {
		fmt.Printf("  FAILED %s [%s]: %v\n", f.Path, errors.GetCategory(f.Err), f.Err)
	}
}

// reportError turns failed documents into a build error so the exit code
// reflects them.
func reportError(r *build.Report) error {
	switch r.Outcome {
	case metrics.BuildOutcomeSuccess:
		return nil
	case metrics.BuildOutcomeCanceled:
		return errors.RuntimeError("build canceled").WithContext("build_id", r.BuildID).Build()
	default:
		return errors.BuildError(fmt.Sprintf("%d of %d documents failed", r.Count(metrics.ResultFailed), len(r.Results))).
			WithContext("build_id", r.BuildID).
			Build()
	}
}

// exportHTML renders the documents the build compiled into dir and removes
// the pages of documents it removed.
func exportHTML(ctx context.Context, e *env, dir string, r *build.Report) error {
	for _, slug := range r.Removed {
		_ = os.Remove(pagePath(dir, slug))
	}
	renderer := &render.HTMLRenderer{PointerURL: e.resolver().URL, CopyButton: true}
	for _, res := range r.Results {
		if res.Status != metrics.ResultSuccess && res.Status != metrics.ResultWarning {
			continue
		}
		rec, err := e.docs.Get(ctx, res.Slug)
		if err != nil {
			return err
		}
		body, err := render.Walk(rec.Document, renderer)
		if err != nil {
			return err
		}
		if err := writePage(pagePath(dir, res.Slug), res.Slug, rec.Document, body); err != nil {
			return err
		}
	}
	return nil
}

func pagePath(dir, slug string) string {
	return filepath.Join(dir, filepath.FromSlash(slug)+".html")
}

func writePage(path, slug string, doc *document.Document, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create html dir").WithContext("path", path).Build()
	}
	f, err := os.Create(path) // #nosec G304 - path is below the configured html dir
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create page").WithContext("path", path).Build()
	}
	if err := server.WritePage(f, slug, doc, body); err != nil {
		_ = f.Close()
		return errors.WrapError(err, errors.CategoryFileSystem, "write page").WithContext("path", path).Build()
	}
	if err := f.Close(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "close page").WithContext("path", path).Build()
	}
	return nil
}
