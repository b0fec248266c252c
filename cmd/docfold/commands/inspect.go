package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/fold"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	File string `arg:"" type:"existingfile" help:"Source file to compile"`
	JSON bool   `help:"Print the compiled document as JSON instead of the node table"`
}

func (c *InspectCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfigOrDefault(g)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	compiled, err := compileFile(ctx, cfg, c.File)
	if err != nil {
		return err
	}
	if c.JSON {
		data, err := document.Encode(compiled.Document)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	arena := fold.Flatten(compiled.Forest)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tNODE\tFORM\tKEEP\tID\tINNER")
	for i, e := range arena.Entries {
		form := "partial"
		if e.Folded {
			form = "folded"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s%s\t%s\t%s\t%s\t%d\n",
			i, strings.Repeat("  ", e.Depth), label(e.Shell), form, dash(string(e.Keep)), e.ID.Short(), e.InnerSize)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	st := arena.Stats()
	fmt.Printf("\ndocument %s (%s root, id %s)\n", compiled.Slug, compiled.Document.Root.Type, compiled.Forest.ID.Short())
	fmt.Printf("nodes %d: folded %d, partial %d, keep %d; inner %d bytes; depth %d\n",
		st.Nodes, st.Folded, st.Partial, st.Keep, st.InnerBytes, st.MaxDepth)
	kinds := make([]string, 0, len(st.KeepByType))
	for k, n := range st.KeepByType {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(kinds)
	if len(kinds) > 0 {
		fmt.Printf("keep kinds: %s\n", strings.Join(kinds, " "))
	}
	for _, w := range compiled.Warnings {
		fmt.Printf("warning: %v\n", w)
	}
	return nil
}

func label(s fold.Shell) string {
	if s.Kind == fold.ShellElement {
		return "<" + s.TagName + ">"
	}
	return string(s.Kind)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
