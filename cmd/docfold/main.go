package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docfold/cmd/docfold/commands"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(&cli,
		kong.Name("docfold"),
		kong.Description("Compile Markdown and HTML documents into folded, content-addressed trees."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	err := parser.Run(&cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
