// Command agentstarter runs an LLM agent that coordinates over ntfy.sh.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/agentstarter/config"
	"github.com/hupe1980/agentstarter/logging"
)

var version = "dev"

// env is populated by the Before hook.
type env struct {
	cfg    *config.Config
	logger *logging.SlogAdapter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	e := &env{}

	return &cli.App{
		Name:    "agentstarter",
		Usage:   "LLM agent with ntfy coordination, sandboxed code execution and web search",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"AGENTSTARTER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, text)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if v := c.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}
			if v := c.String("log-format"); v != "" {
				cfg.Logging.Format = v
			}
			e.cfg = cfg
			e.logger = logging.New(logging.Config{
				Level:     logging.ParseLevel(cfg.Logging.Level),
				Format:    cfg.Logging.Format,
				Output:    c.App.ErrWriter,
				Component: "agentstarter",
			})
			slog.SetDefault(e.logger.Logger)
			return nil
		},
		Commands: []*cli.Command{
			runCommand(e),
			chatCommand(e),
			listenCommand(e),
			idCommand(e),
			toolsCommand(e),
			readCommand(e),
			postCommand(e),
			notifyCommand(e),
			subscribeCommand(e),
			serveCommand(e),
			mcpCommand(e),
		},
	}
}
