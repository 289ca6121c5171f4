// Package agentstarter wires a language model to the default tool set: ntfy
// coordination channels, sandboxed code execution, web search and a few
// demonstration tools. Most applications only need New and Starter.Run:
//
//	llm := openai.New(apiKey)
//	s, err := agentstarter.New(llm, func(o *agentstarter.Options) {
//		o.Name = "scout"
//	})
//	res, err := s.Run(ctx, "Check agent_commands and report back on agent_sync")
package agentstarter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/agentstarter/agent"
	"github.com/hupe1980/agentstarter/config"
	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/ntfy"
	"github.com/hupe1980/agentstarter/sandbox"
	"github.com/hupe1980/agentstarter/search"
	"github.com/hupe1980/agentstarter/session"
	"github.com/hupe1980/agentstarter/tool"
	"github.com/hupe1980/agentstarter/tool/builtin"
	"github.com/hupe1980/agentstarter/tool/ntfytool"
	"github.com/hupe1980/agentstarter/tool/sandboxtool"
	"github.com/hupe1980/agentstarter/tool/searchtool"
)

// DefaultInstruction is the system prompt template. Besides agent_id,
// agent_name and run_id it can reference every channel name.
const DefaultInstruction = `You are {{.agent_id}}, an autonomous agent that coordinates with other agents over ntfy channels.

Channels:
- {{.commands_channel}}: commands addressed to all agents
- {{.sync_channel}}: status updates between agents
- {{.tasks_channel}}: tasks delegated to you
- {{.emergencies_channel}}: urgent broadcasts

Use the tools when they help with the request. Report progress with
notify_external_system. When the task is complete, give the final answer and
call stop_loop.`

// Options configures a Starter.
type Options struct {
	// Name is the agent name; a random suffix is appended to form the identity.
	Name string
	// Identity overrides Name when set.
	Identity core.Identity

	Instruction      agent.Instruction
	Channels         ntfy.Channels
	NtfyBaseURL      string
	NtfyToken        string
	NtfyTimeout      time.Duration
	SandboxURL       string
	SerpAPIKey       string
	SearchEndpoint   string
	HTTPClient       *http.Client
	EnableStreaming  bool
	MaxIterations    int           // 0 disables the cap
	ToolTimeout      time.Duration // 0 disables
	MaxParallelTools int
	MaxHistory       int
	RunHistory       int

	// AnnounceRuns posts a status update on the sync channel when a run
	// starts and finishes.
	AnnounceRuns bool

	// ExtraTools are registered after the default set.
	ExtraTools []tool.Tool
	// DisableDefaultTools leaves only ExtraTools and stop_loop.
	DisableDefaultTools bool

	Logger  logging.Logger
	OnEvent func(core.Event)
}

// FromConfig copies cfg into the options.
func FromConfig(cfg *config.Config) func(o *Options) {
	return func(o *Options) {
		o.Name = cfg.Agent.Name
		if cfg.Agent.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instruction)
		}
		o.Channels = cfg.Ntfy.Channels
		o.NtfyBaseURL = cfg.Ntfy.BaseURL
		o.NtfyToken = cfg.Ntfy.Token
		o.NtfyTimeout = cfg.Ntfy.Timeout()
		o.SandboxURL = cfg.Sandbox.URL
		o.SerpAPIKey = cfg.Search.SerpAPIKey
		o.SearchEndpoint = cfg.Search.Endpoint
		o.EnableStreaming = cfg.Agent.Streaming
		o.MaxIterations = cfg.Agent.MaxIterations
		o.ToolTimeout = cfg.Agent.ToolTimeout()
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.MaxHistory = cfg.Agent.MaxHistoryMessages
		o.RunHistory = cfg.Agent.RunHistory
		o.AnnounceRuns = cfg.Agent.AnnounceRuns
	}
}

// Starter is a ready to run agent with its supporting clients.
type Starter struct {
	opts     Options
	identity core.Identity
	ntfy     *ntfy.Client
	sandbox  *sandbox.Client
	tools    *tool.Registry
	agent    *agent.Agent
	runs     *session.InMemoryStore
	logger   logging.Logger
}

// New builds a Starter around llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Starter, error) {
	if llm == nil {
		return nil, errors.New("agentstarter: model is required")
	}

	opts := Options{
		Instruction:   agent.NewInstructionFromText(DefaultInstruction),
		Channels:      ntfy.DefaultChannels(),
		MaxIterations: agent.DefaultMaxIterations,
		ToolTimeout:   agent.DefaultToolTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Channels = opts.Channels.WithDefaults()
	if err := opts.Channels.Validate(); err != nil {
		return nil, fmt.Errorf("agentstarter: %w", err)
	}

	logger := logging.OrNoOp(opts.Logger)

	identity := opts.Identity
	if identity.IsZero() {
		identity = core.NewIdentity(opts.Name)
	}
	if err := ntfy.ValidateChannel(opts.Channels.TasksChannel(identity.String())); err != nil {
		return nil, fmt.Errorf("agentstarter: tasks channel for %s: %w", identity, err)
	}

	nc, err := ntfy.NewClient(func(o *ntfy.Options) {
		o.BaseURL = opts.NtfyBaseURL
		o.Token = opts.NtfyToken
		o.Timeout = opts.NtfyTimeout
		o.HTTPClient = opts.HTTPClient
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("agentstarter: %w", err)
	}

	sc := sandbox.NewClient(func(o *sandbox.Options) {
		o.URL = opts.SandboxURL
		o.HTTPClient = opts.HTTPClient
		o.Logger = logger
	})

	tools, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}
	if opts.DisableDefaultTools {
		err = tools.Register(tool.NewStopLoopTool())
	} else {
		err = tools.Register(DefaultTools(nc, sc, opts, logger)...)
	}
	if err != nil {
		return nil, fmt.Errorf("agentstarter: %w", err)
	}
	if err := tools.Register(opts.ExtraTools...); err != nil {
		return nil, fmt.Errorf("agentstarter: %w", err)
	}

	a := agent.New(identity, llm, func(o *agent.Options) {
		o.Instruction = opts.Instruction
		o.InstructionData = instructionData(identity, opts.Channels)
		o.EnableStreaming = opts.EnableStreaming
		o.MaxParallelTools = opts.MaxParallelTools
		o.Tools = tools
		o.Logger = logger
		o.OnEvent = opts.OnEvent
		o.MaxIterations = opts.MaxIterations
		o.ToolTimeout = opts.ToolTimeout
		if opts.MaxHistory > 0 {
			o.MaxHistoryMessages = opts.MaxHistory
		}
	})

	logger.Info("agentstarter.ready", "agent_id", identity.String(), "model", llm.Info().Name, "tools", tools.Len())

	return &Starter{
		opts:     opts,
		identity: identity,
		ntfy:     nc,
		sandbox:  sc,
		tools:    tools,
		agent:    a,
		runs:     session.NewInMemoryStore(opts.RunHistory),
		logger:   logger,
	}, nil
}

// DefaultTools returns the stock tool set bound to the given clients: the
// relay tools, execute_code, both search tools, do_math, get_weather and
// stop_loop.
func DefaultTools(nc *ntfy.Client, sc *sandbox.Client, opts Options, logger logging.Logger) []tool.Tool {
	serp := search.NewClient(func(o *search.Options) {
		o.APIKey = opts.SerpAPIKey
		o.Endpoint = opts.SearchEndpoint
		o.HTTPClient = opts.HTTPClient
		o.Logger = logger
	})

	tools := ntfytool.Tools(nc, opts.Channels)
	tools = append(tools,
		sandboxtool.New(sc),
		searchtool.NewSearchTool(serp),
		searchtool.NewFallbackTool(search.NewFallback(sc, logger)),
	)
	return append(tools, builtin.Tools()...)
}

func instructionData(identity core.Identity, ch ntfy.Channels) map[string]any {
	return map[string]any{
		"commands_channel":    ch.Commands,
		"sync_channel":        ch.Sync,
		"tasks_channel":       ch.TasksChannel(identity.String()),
		"emergencies_channel": ch.Emergencies,
		"private_channel":     ch.Private,
		"user_channel":        ch.User,
		"flag_channel":        ch.Flag,
	}
}

// Identity returns the agent identity.
func (s *Starter) Identity() core.Identity { return s.identity }

// Tools returns the tool registry.
func (s *Starter) Tools() *tool.Registry { return s.tools }

// Ntfy returns the relay client.
func (s *Starter) Ntfy() *ntfy.Client { return s.ntfy }

// Sandbox returns the code execution client.
func (s *Starter) Sandbox() *sandbox.Client { return s.sandbox }

// Runs returns the store of recent runs.
func (s *Starter) Runs() *session.InMemoryStore { return s.runs }

// Channels returns the effective channel layout.
func (s *Starter) Channels() ntfy.Channels { return s.opts.Channels }

// TasksChannel returns this agent's task channel.
func (s *Starter) TasksChannel() string { return s.opts.Channels.TasksChannel(s.identity.String()) }

// Run sends prompt to the model in a fresh conversation and executes tool
// calls until the model answers or stops the loop. On error the partial
// result is returned alongside it.
func (s *Starter) Run(ctx context.Context, prompt string) (*agent.Result, error) {
	return s.run(ctx, prompt, func() (*agent.Result, error) {
		return s.agent.Run(ctx, prompt)
	})
}

// Continue runs prompt inside the conversation identified by sessionID. An
// empty or unknown id starts a new conversation; the session id used is
// returned.
func (s *Starter) Continue(ctx context.Context, sessionID, prompt string) (string, *agent.Result, error) {
	sess := s.runs.Session(sessionID, s.identity.String())
	res, err := s.run(ctx, prompt, func() (*agent.Result, error) {
		return s.agent.Continue(ctx, sess, prompt)
	})
	return sess.ID, res, err
}

// Listen subscribes to channel (the agent's task channel when empty) and
// runs every published message as a prompt, one at a time, until ctx is
// cancelled. Failed runs are logged and reported to onResult, they do not
// end the subscription.
func (s *Starter) Listen(ctx context.Context, channel string, onResult func(ntfy.Message, *agent.Result, error)) error {
	if channel == "" {
		channel = s.TasksChannel()
	}
	s.logger.Info("agentstarter.listen.start", "channel", channel, "agent_id", s.identity.String())

	return s.ntfy.Subscribe(ctx, channel, func(msg ntfy.Message) error {
		prompt := strings.TrimSpace(msg.Message)
		if prompt == "" {
			return nil
		}
		res, err := s.Run(ctx, prompt)
		if err != nil {
			s.logger.Warn("agentstarter.listen.run_failed", "channel", channel, "message_id", msg.ID, "error", err.Error())
		}
		if onResult != nil {
			onResult(msg, res, err)
		}
		return nil
	})
}

func (s *Starter) run(ctx context.Context, prompt string, fn func() (*agent.Result, error)) (*agent.Result, error) {
	s.announce(ctx, ntfy.StatusUpdate{
		Status:  "running",
		Message: ntfy.Preview(prompt, 100),
	})

	res, err := fn()
	s.runs.SaveRun(res)

	if err != nil {
		s.announce(ctx, ntfy.StatusUpdate{Status: "failed", Message: err.Error(), IsError: true})
		return res, err
	}
	s.announce(ctx, ntfy.StatusUpdate{Status: "completed", Message: ntfy.Preview(res.Output, 100)})
	return res, nil
}

func (s *Starter) announce(ctx context.Context, update ntfy.StatusUpdate) {
	if !s.opts.AnnounceRuns {
		return
	}
	update.AgentID = s.identity.String()
	if _, err := s.ntfy.NotifyStatus(context.WithoutCancel(ctx), s.opts.Channels.Sync, update); err != nil {
		s.logger.Warn("agentstarter.announce.failed", "status", update.Status, "error", err.Error())
	}
}
