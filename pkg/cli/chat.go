package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/agent"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg      config
		clientID string
		screen   string
	)
	tools := newGameTools()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "client-id",
			Usage:       "Client ID of the chat session",
			Value:       "local",
			Sources:     cli.EnvVars("T3RN_CLIENT_ID"),
			Destination: &clientID,
		},
		&cli.StringFlag{
			Name:        "screen",
			Aliases:     []string{"s"},
			Usage:       "Screen payload JSON file sent with the first message",
			Destination: &screen,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)
	flags = append(flags, tools.flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat with the assistant",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			w := c.Root().Writer

			rt, err := cfg.newRuntime(ctx, tools)
			if err != nil {
				return err
			}
			defer rt.close()

			sess := rt.manager.Get(ctx, model.ClientID(clientID))
			if screen != "" {
				payload, err := readScreen(screen)
				if err != nil {
					return err
				}
				sess.PrimeScreen(payload)
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start readline")
			}
			defer rl.Close()

			fmt.Fprintf(w, "Chat session %s started. Type /memory, /screen <file> or exit.\n", sess.ID())

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				switch {
				case message == "":
					continue
				case message == "exit" || message == "quit":
					return rt.manager.Teardown(ctx, sess.ClientID())
				case message == "/memory":
					raw, err := json.MarshalIndent(sess.Snapshot(), "", "  ")
					if err != nil {
						return goerr.Wrap(err, "failed to marshal memory snapshot")
					}
					fmt.Fprintln(w, string(raw))
					continue
				case strings.HasPrefix(message, "/screen "):
					payload, err := readScreen(strings.TrimSpace(strings.TrimPrefix(message, "/screen ")))
					if err != nil {
						fmt.Fprintf(w, "error: %v\n", err)
						continue
					}
					sess.PrimeScreen(payload)
					fmt.Fprintln(w, "screen primed for the next message")
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				sp.Suffix = " T-3RN is thinking..."
				sp.Start()
				outcome, err := sess.Handle(ctx, message, nil)
				sp.Stop()
				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					continue
				}

				fmt.Fprintf(w, "%s\n", outcome.Answer)
				if outcome.Agent != agent.KindPrimary {
					fmt.Fprintf(w, "  (answered by %s agent)\n", outcome.Agent)
				}
			}

			return rt.manager.Teardown(ctx, sess.ClientID())
		},
	}
}

func readScreen(path string) (model.ScreenPayload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read screen file", goerr.V("path", path))
	}
	var payload model.ScreenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, goerr.Wrap(err, "failed to parse screen file", goerr.V("path", path))
	}
	return payload, nil
}
