package commands

import (
	"git.home.luguber.info/inful/docfold/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (default: server.addr from the configuration)"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
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

	addr := cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	srv := server.New(e.docs, e.resolver(), server.WithGatherer(e.registry), server.WithLogger(g.Logger))
	return srv.ListenAndServe(ctx, addr)
}
