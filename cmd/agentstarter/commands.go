package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentstarter"
	"github.com/hupe1980/agentstarter/agent"
	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/mcpserver"
	"github.com/hupe1980/agentstarter/metrics"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/ntfy"
	"github.com/hupe1980/agentstarter/server"
)

func metricsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Serve Prometheus metrics on this address",
		EnvVars: []string{"METRICS_ADDR"},
	}
}

// newStarter builds a Starter with the configured model. offline uses the
// mock model for commands that never call it.
func (e *env) newStarter(c *cli.Context, offline bool, optFns ...func(o *agentstarter.Options)) (*agentstarter.Starter, error) {
	var (
		llm model.Model
		err error
	)
	if offline {
		llm = model.NewMockModel("mock", "mock")
	} else if llm, err = newModel(c.Context, e.cfg.Model); err != nil {
		return nil, err
	}

	fns := append([]func(o *agentstarter.Options){
		agentstarter.FromConfig(e.cfg),
		func(o *agentstarter.Options) { o.Logger = e.logger },
	}, optFns...)
	return agentstarter.New(llm, fns...)
}

func (e *env) newNtfy() (*ntfy.Client, error) {
	return ntfy.NewClient(func(o *ntfy.Options) {
		o.BaseURL = e.cfg.Ntfy.BaseURL
		o.Token = e.cfg.Ntfy.Token
		o.Timeout = e.cfg.Ntfy.Timeout()
		o.Logger = e.logger
	})
}

func runCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Send one prompt to the agent and print the answer",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stream", Usage: "Print partial model output as it arrives"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Print tool calls and their results"},
			metricsFlag(),
		},
		Action: func(c *cli.Context) error {
			prompt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if prompt == "" {
				return errors.New("run: prompt is required")
			}
			if err := metrics.Start(c.Context, c.String("metrics-addr"), e.logger); err != nil {
				return err
			}

			out := c.App.Writer
			stream := c.Bool("stream")
			s, err := e.newStarter(c, false, func(o *agentstarter.Options) {
				if stream {
					o.EnableStreaming = true
					o.OnEvent = func(ev core.Event) {
						if ev.IsPartial() && ev.Content != nil {
							fmt.Fprint(out, ev.Content.Text())
						}
					}
				}
			})
			if err != nil {
				return err
			}

			res, err := s.Run(c.Context, prompt)
			if stream {
				fmt.Fprintln(out)
			}
			if res != nil {
				printResult(out, res, c.Bool("verbose"), !stream)
			}
			return err
		},
	}
}

func printResult(w io.Writer, res *agent.Result, verbose, output bool) {
	if verbose {
		for _, tr := range res.ToolResults {
			if tr.Error != "" {
				fmt.Fprintf(w, "[tool] %s(%s) failed: %s\n", tr.Name, tr.Arguments, tr.Error)
				continue
			}
			fmt.Fprintf(w, "[tool] %s(%s) -> %s\n", tr.Name, tr.Arguments, ntfy.Preview(tr.Output, 200))
		}
	}
	if output && res.Output != "" {
		fmt.Fprintln(w, res.Output)
	}
}

func chatCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with the agent",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Print tool calls and their results"},
		},
		Action: func(c *cli.Context) error {
			s, err := e.newStarter(c, false)
			if err != nil {
				return err
			}
			out := c.App.Writer
			fmt.Fprintf(out, "Chatting as %s. Type 'exit' to quit.\n", s.Identity())

			sessionID := ""
			for {
				var prompt string
				err := survey.AskOne(&survey.Input{Message: "You:"}, &prompt)
				if errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				prompt = strings.TrimSpace(prompt)
				switch prompt {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				var res *agent.Result
				sessionID, res, err = s.Continue(c.Context, sessionID, prompt)
				if res != nil {
					printResult(out, res, c.Bool("verbose"), true)
				}
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
				if c.Context.Err() != nil {
					return nil
				}
			}
		},
	}
}

func listenCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Run every message posted on a channel as a prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Usage: "Channel to listen on (default: the agent's task channel)"},
			metricsFlag(),
		},
		Action: func(c *cli.Context) error {
			if err := metrics.Start(c.Context, c.String("metrics-addr"), e.logger); err != nil {
				return err
			}
			s, err := e.newStarter(c, false)
			if err != nil {
				return err
			}
			out := c.App.Writer
			fmt.Fprintf(out, "%s listening on %s\n", s.Identity(), orDefault(c.String("channel"), s.TasksChannel()))

			return s.Listen(c.Context, c.String("channel"), func(msg ntfy.Message, res *agent.Result, err error) {
				fmt.Fprintf(out, "> %s\n", msg.Message)
				if res != nil {
					printResult(out, res, false, true)
				}
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			})
		},
	}
}

func idCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "id",
		Usage: "Print a fresh agent identity and its channels",
		Action: func(c *cli.Context) error {
			s, err := e.newStarter(c, true)
			if err != nil {
				return err
			}
			ch := s.Channels()
			out := c.App.Writer
			fmt.Fprintf(out, "agent_id:    %s\n", s.Identity())
			fmt.Fprintf(out, "tasks:       %s\n", s.TasksChannel())
			fmt.Fprintf(out, "commands:    %s\n", ch.Commands)
			fmt.Fprintf(out, "sync:        %s\n", ch.Sync)
			fmt.Fprintf(out, "emergencies: %s\n", ch.Emergencies)
			return nil
		},
	}
}

func toolsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "List the tools offered to the model",
		Action: func(c *cli.Context) error {
			s, err := e.newStarter(c, true)
			if err != nil {
				return err
			}
			for _, t := range s.Tools().Tools() {
				fmt.Fprintf(c.App.Writer, "%-24s %s\n", t.Name(), ntfy.Preview(t.Description(), 80))
			}
			return nil
		},
	}
}

func readCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Print recent messages from a channel",
		ArgsUsage: "<channel>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: ntfy.DefaultReadLimit, Usage: "Number of messages (max 100)"},
		},
		Action: func(c *cli.Context) error {
			channel := c.Args().First()
			if channel == "" {
				return errors.New("read: channel is required")
			}
			nc, err := e.newNtfy()
			if err != nil {
				return err
			}
			msgs, err := nc.Read(c.Context, channel, c.Int("limit"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, ntfy.FormatMessages(channel, msgs))
			return nil
		},
	}
}

func postCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Publish a message on a channel",
		ArgsUsage: "<channel> <message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Message title"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Message tag (repeatable)"},
			&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Priority 1-5"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return errors.New("post: channel and message are required")
			}
			nc, err := e.newNtfy()
			if err != nil {
				return err
			}
			channel := c.Args().First()
			msg, err := nc.Publish(c.Context, channel, strings.Join(c.Args().Tail(), " "), ntfy.PublishOptions{
				Title:    c.String("title"),
				Tags:     c.StringSlice("tag"),
				Priority: c.Int("priority"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Posted to '%s' (id %s)\n", channel, msg.ID)
			return nil
		},
	}
}

func notifyCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Publish a status update on the sync channel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "agent-id", Usage: "Agent id to report as", Required: true},
			&cli.StringFlag{Name: "status", Usage: "Status, e.g. running or completed", Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Status details"},
			&cli.BoolFlag{Name: "error", Usage: "Mark the update as an error"},
		},
		Action: func(c *cli.Context) error {
			nc, err := e.newNtfy()
			if err != nil {
				return err
			}
			update := ntfy.StatusUpdate{
				AgentID: c.String("agent-id"),
				Status:  c.String("status"),
				Message: c.String("message"),
				IsError: c.Bool("error"),
			}
			if _, err := nc.NotifyStatus(c.Context, e.cfg.Ntfy.Channels.Sync, update); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Posted to '%s': %s\n", e.cfg.Ntfy.Channels.Sync, update.Title())
			return nil
		},
	}
}

func subscribeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream messages from a channel until interrupted",
		ArgsUsage: "<channel>",
		Action: func(c *cli.Context) error {
			channel := c.Args().First()
			if channel == "" {
				return errors.New("subscribe: channel is required")
			}
			nc, err := e.newNtfy()
			if err != nil {
				return err
			}
			return nc.Subscribe(c.Context, channel, func(m ntfy.Message) error {
				fmt.Fprintln(c.App.Writer, ntfy.FormatMessages(channel, []ntfy.Message{m}))
				return nil
			})
		},
	}
}

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address", EnvVars: []string{"SERVER_ADDR"}},
			&cli.BoolFlag{Name: "listen", Usage: "Also run messages from the agent's task channel"},
		},
		Action: func(c *cli.Context) error {
			s, err := e.newStarter(c, false)
			if err != nil {
				return err
			}
			mcp, err := mcpserver.New(s.Identity(), s.Tools(), func(o *mcpserver.Options) {
				o.Version = version
				o.Logger = e.logger
			})
			if err != nil {
				return err
			}

			srv := server.New(s, func(o *server.Options) {
				o.Addr = orDefault(c.String("addr"), e.cfg.Server.Addr)
				o.Logger = e.logger
				o.MCP = mcp.Handler()
			})

			g, ctx := errgroup.WithContext(c.Context)
			g.Go(func() error { return srv.ListenAndServe(ctx) })
			if c.Bool("listen") {
				g.Go(func() error { return s.Listen(ctx, "", nil) })
			}
			return g.Wait()
		},
	}
}

func mcpCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the tools over MCP on stdin/stdout",
		Action: func(c *cli.Context) error {
			s, err := e.newStarter(c, true)
			if err != nil {
				return err
			}
			srv, err := mcpserver.New(s.Identity(), s.Tools(), func(o *mcpserver.Options) {
				o.Version = version
				o.Logger = e.logger
			})
			if err != nil {
				return err
			}
			return srv.ServeStdio()
		},
	}
}
