package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/metrics"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/tool"
)

// ErrMaxIterations is returned when the model call budget is spent before
// the model produced a final answer. The partial Result is still returned.
var ErrMaxIterations = errors.New("max iterations reached")

// Options configures an Agent.
type Options struct {
	Instruction        Instruction
	InstructionData    map[string]any // extra template values, e.g. channel names
	EnableStreaming    bool
	MaxIterations      int           // model calls per run; 0 disables the cap
	ToolTimeout        time.Duration // per tool call, raised to a tool's own Budget; 0 disables
	MaxParallelTools   int           // 0 runs a whole batch concurrently
	MaxHistoryMessages int
	Tools              *tool.Registry
	Logger             logging.Logger
	OnEvent            func(core.Event) // observes every event including partial chunks
}

// ToolResult summarizes one executed tool call.
type ToolResult struct {
	CallID    string        `json:"call_id"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Result is the outcome of a run.
type Result struct {
	RunID       string       `json:"run_id"`
	AgentID     string       `json:"agent_id"`
	Output      string       `json:"output"`
	Events      []core.Event `json:"events"`
	ToolResults []ToolResult `json:"tool_results"`
	Iterations  int          `json:"iterations"`
	Stopped     bool         `json:"stopped"` // stop_loop was called
}

// Agent drives the model/tool loop for one identity.
type Agent struct {
	identity core.Identity
	llm      model.Model
	opts     Options
	logger   logging.Logger
}

// Option defaults.
const (
	DefaultMaxIterations      = 10
	DefaultToolTimeout        = 30 * time.Second
	DefaultMaxHistoryMessages = 50
)

// New creates an Agent with the option defaults and an empty tool
// registry.
func New(identity core.Identity, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:        NewInstructionFromText(DefaultInstruction),
		MaxIterations:      DefaultMaxIterations,
		ToolTimeout:        DefaultToolTimeout,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(DefaultInstruction)
	}
	if opts.Tools == nil {
		opts.Tools, _ = tool.NewRegistry()
	}

	return &Agent{
		identity: identity,
		llm:      llm,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Identity returns the agent identity.
func (a *Agent) Identity() core.Identity { return a.identity }

// Tools returns the tool registry.
func (a *Agent) Tools() *tool.Registry { return a.opts.Tools }

// Model returns the underlying model.
func (a *Agent) Model() model.Model { return a.llm }

// Run executes the loop for a text prompt.
func (a *Agent) Run(ctx context.Context, prompt string) (*Result, error) {
	return a.RunContent(ctx, core.NewTextContent(core.RoleUser, prompt))
}

// RunContent executes the loop for arbitrary user content in a fresh session.
func (a *Agent) RunContent(ctx context.Context, content *core.Content) (*Result, error) {
	return a.run(ctx, nil, content)
}

// Continue executes the loop on top of an existing session, so earlier
// runs are part of the model's history. sess must belong to this agent.
func (a *Agent) Continue(ctx context.Context, sess *core.Session, prompt string) (*Result, error) {
	return a.run(ctx, sess, core.NewTextContent(core.RoleUser, prompt))
}

// NewSession returns an empty session for use with Continue.
func (a *Agent) NewSession() *core.Session {
	return core.NewSession(core.NewID(), a.identity.String())
}

func (a *Agent) run(ctx context.Context, sess *core.Session, content *core.Content) (*Result, error) {
	if content == nil || len(content.Parts) == 0 {
		return nil, errors.New("agent: empty input")
	}

	rc := core.NewRunContext(ctx, a.identity, a.opts.MaxIterations, a.logger)
	if sess != nil {
		rc.Session = sess
	}

	result := &Result{RunID: rc.RunID, AgentID: rc.AgentID()}
	start := time.Now()

	rc.LogInfo("agent.run.start", "agent_id", result.AgentID, "run_id", rc.RunID, "tools", a.opts.Tools.Len())

	a.record(rc, core.NewUserContentEvent(rc.RunID, content))

	err := a.loop(rc, result)

	for _, ev := range rc.Session.GetEvents() {
		if ev.RunID == rc.RunID {
			result.Events = append(result.Events, ev)
		}
	}

	metrics.IncRun(metrics.StatusOf(err))
	if err != nil {
		rc.LogWarn("agent.run.failed", "run_id", rc.RunID, "iterations", result.Iterations, "error", err.Error())
		return result, err
	}

	rc.LogInfo("agent.run.complete",
		"run_id", rc.RunID,
		"iterations", result.Iterations,
		"tool_calls", len(result.ToolResults),
		"stopped", result.Stopped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (a *Agent) loop(rc *core.RunContext, result *Result) error {
	provider := a.llm.Info().Provider

	for {
		if err := rc.Err(); err != nil {
			return err
		}
		if err := rc.Limiter.Increment(); err != nil {
			return fmt.Errorf("%w: %w", ErrMaxIterations, err)
		}
		result.Iterations++

		req, err := a.buildRequest(rc)
		if err != nil {
			return fmt.Errorf("agent: resolve instruction: %w", err)
		}

		rc.LogDebug("agent.model.request", "run_id", rc.RunID, "iteration", result.Iterations, "contents", len(req.Contents))

		resp, err := model.Collect(rc.Context, a.llm, req, func(chunk model.Response) {
			ev := core.NewEvent(rc.RunID, rc.AgentID())
			content := chunk.Content
			ev.Content = &content
			partial := true
			ev.Partial = &partial
			a.emit(ev)
		})
		metrics.IncModelCall(provider, metrics.StatusOf(err))
		if err != nil {
			a.record(rc, core.NewErrorEvent(rc.RunID, rc.AgentID(), err))
			return fmt.Errorf("agent: model call: %w", err)
		}

		ev := core.NewEvent(rc.RunID, rc.AgentID())
		content := resp.Content
		if content.Role == "" {
			content.Role = core.RoleAssistant
		}
		ev.Content = &content

		calls := ev.GetFunctionCalls()
		if len(calls) == 0 {
			complete := true
			ev.TurnComplete = &complete
		}
		a.record(rc, ev)

		if text := content.Text(); text != "" {
			result.Output = text
		}
		if len(calls) == 0 {
			return nil
		}

		stop := false
		for _, out := range a.executeTools(rc, calls) {
			a.record(rc, out.event)
			result.ToolResults = append(result.ToolResults, out.result)
			if out.event.StopRequested() {
				stop = true
			}
		}
		if stop {
			result.Stopped = true
			rc.LogInfo("agent.run.stop_loop", "run_id", rc.RunID, "iteration", result.Iterations)
			return nil
		}
	}
}

func (a *Agent) buildRequest(rc *core.RunContext) (model.Request, error) {
	instructions, err := a.opts.Instruction.Resolve(rc, a.opts.InstructionData)
	if err != nil {
		return model.Request{}, err
	}

	history := rc.Session.ConversationHistory(a.opts.MaxHistoryMessages)
	contents := make([]core.Content, 0, len(history))
	for _, ev := range history {
		contents = append(contents, *ev.Content)
	}

	return model.Request{
		Instructions: instructions,
		Contents:     contents,
		Tools:        a.opts.Tools.Definitions(),
		Stream:       a.opts.EnableStreaming,
	}, nil
}

func (a *Agent) record(rc *core.RunContext, ev core.Event) {
	rc.AddEvent(ev)
	a.emit(ev)
}

func (a *Agent) emit(ev core.Event) {
	if a.opts.OnEvent != nil {
		a.opts.OnEvent(ev)
	}
}
