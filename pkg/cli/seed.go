package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/usecase/seed"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func seedCommand() *cli.Command {
	var (
		cfg  config
		file string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Seed YAML with champions, battles, UX records, greetings and knowledge",
			Destination: &file,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Load seed data into the Firestore knowledge store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			repo, err := cfg.newFirestore()
			if err != nil {
				return err
			}
			defer repo.Close()

			var gemini adapter.Gemini
			if cfg.geminiProject != "" {
				g, err := cfg.newGemini(ctx)
				if err != nil {
					return err
				}
				gemini = g
			} else {
				logging.From(ctx).Warn("gemini-project is not set, knowledge chunks are not embedded")
			}

			s, err := repository.LoadSeed(file)
			if err != nil {
				return err
			}

			res, err := seed.Apply(ctx, repo, gemini, s, int(cfg.embeddingDim))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "seeded %d champions, %d battles, %d UX records, %d greetings, %d knowledge chunks\n",
				res.Champions, res.Battles, res.UX, res.Greetings, res.Knowledge)
			return nil
		},
	}
}
