package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/docfold/internal/build"
	"git.home.luguber.info/inful/docfold/internal/server"
	"git.home.luguber.info/inful/docfold/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Serve bool   `short:"s" help:"Also serve the documents over HTTP"`
	Addr  string `short:"a" help:"Listen address when serving (default: server.addr)"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	e, err := openEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx, cancel := signalContext()
	defer cancel()

	b := e.builder(false)
	report, err := b.Build(ctx)
	if err != nil {
		return err
	}
	printReport(report)

	var srv *server.Server
	errCh := make(chan error, 1)
	if c.Serve {
		addr := cfg.Server.Addr
		if c.Addr != "" {
			addr = c.Addr
		}
		srv = server.New(e.docs, e.resolver(), server.WithGatherer(e.registry), server.WithLogger(g.Logger))
		go func() {
			errCh <- srv.ListenAndServe(ctx, addr)
		}()
	}

	w := &watch.Watcher{
		Dir:      cfg.Source.Dir,
		Debounce: cfg.Build.Debounce,
		Builder:  b,
		OnBuild: func(r *build.Report, err error) {
			if err != nil {
				return
			}
			printReport(r)
			if srv != nil {
				srv.Invalidate()
			}
			if cfg.Output.HTMLDir != "" {
				if err := exportHTML(ctx, e, cfg.Output.HTMLDir, r); err != nil {
					slog.Warn("HTML export failed", "error", err)
				}
			}
		},
	}
	if err := w.Run(ctx); err != nil {
		cancel()
		return err
	}
	if c.Serve {
		return <-errCh
	}
	return nil
}
