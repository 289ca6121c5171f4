package core

import (
	"context"

	"github.com/hupe1980/agentstarter/logging"
)

// ToolContext is the scope handed to a tool invocation. It carries the
// call's context (with any per-tool deadline), the calling identity and an
// action accumulator that is merged into the response event afterwards.
type ToolContext struct {
	ctx            context.Context
	runID          string
	functionCallID string
	identity       Identity
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		ctx:            runCtx.Context,
		runID:          runCtx.RunID,
		functionCallID: functionCallID,
		identity:       runCtx.Identity,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// NewStandaloneToolContext builds a context for invoking a tool outside an
// agent run (CLI, MCP, HTTP).
func NewStandaloneToolContext(ctx context.Context, identity Identity, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		runID:         NewID(),
		identity:      identity,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// WithContext returns a copy bound to ctx. Actions recorded on the copy are
// not visible on the original.
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	c := *tc
	c.ctx = ctx
	return &c
}

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Identity returns the identity of the calling agent.
func (tc *ToolContext) Identity() Identity { return tc.identity }

// AgentID returns the string form of the calling identity.
func (tc *ToolContext) AgentID() string { return tc.identity.String() }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// StopLoop asks the agent to finish after the current batch of tool calls.
func (tc *ToolContext) StopLoop() {
	b := true
	tc.eventActions.StopLoop = &b
	tc.LogInfo("tool.stop_loop.request", "agent_id", tc.AgentID(), "function_call_id", tc.functionCallID)
}

// InternalApplyActions merges accumulated EventActions into ev.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if tc.eventActions.StopLoop != nil {
		ev.Actions.StopLoop = tc.eventActions.StopLoop
	}
}
