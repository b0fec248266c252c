package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docfold/internal/docstore"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct {
	Objects bool `help:"Also check that every referenced object exists" default:"true" negatable:""`
}

func (c *ValidateCmd) Run(g *Global, root *CLI) error {
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

	list, err := e.docs.List(ctx)
	if err != nil {
		return err
	}
	invalid := 0
	for _, sum := range list {
		rec, err := e.docs.Get(ctx, sum.Slug)
		if err != nil {
			invalid++
			fmt.Printf("INVALID %s [%s]: %v\n", sum.Slug, errors.GetCategory(err), err)
			continue
		}
		if !c.Objects {
			continue
		}
		for _, hash := range docstore.ObjectRefs(rec) {
			ok, err := e.objects.Exists(ctx, hash)
			if err != nil {
				return err
			}
			if !ok {
				invalid++
				fmt.Printf("MISSING %s: object %s\n", sum.Slug, hash)
			}
		}
	}
	fmt.Printf("%d documents checked, %d problems\n", len(list), invalid)
	if invalid > 0 {
		return errors.SchemaValidation(fmt.Sprintf("%d problems in stored documents", invalid)).Build()
	}
	return nil
}
