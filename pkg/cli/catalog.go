package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func catalogCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Game catalog YAML (local path or gs://bucket/object)",
			Sources:     cli.EnvVars("T3RN_CATALOG"),
			Destination: &cfg.catalogPath,
			Required:    true,
		},
	}

	return &cli.Command{
		Name:  "catalog",
		Usage: "Validate and list the game catalog",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			catalog, err := cfg.newCatalog(ctx)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Champions (%d)\n", len(catalog.Champions))
			for _, e := range catalog.Champions {
				fmt.Fprintf(w, "  %-40s %s\n", e.ID, e.Name)
			}
			fmt.Fprintf(w, "Bosses (%d)\n", len(catalog.Bosses))
			for _, e := range catalog.Bosses {
				fmt.Fprintf(w, "  %-40s %s\n", e.ID, e.Name)
			}
			return nil
		},
	}
}
