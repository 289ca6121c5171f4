package core

import (
	"context"

	"github.com/hupe1980/agentstarter/logging"
)

// RunContext carries the per-run execution scope: cancellation, identifiers,
// the working transcript and the model call budget.
type RunContext struct {
	Context  context.Context
	RunID    string
	Identity Identity
	Session  *Session
	Limiter  *ModelLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext with a fresh run id and session.
// maxModelCalls == 0 disables the cap.
func NewRunContext(ctx context.Context, identity Identity, maxModelCalls int, logger logging.Logger) *RunContext {
	runID := NewID()
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Identity:      identity,
		Session:       NewSession(runID, identity.String()),
		Limiter:       NewModelLimiter(maxModelCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// AgentID returns the string form of the running identity.
func (rc *RunContext) AgentID() string { return rc.Identity.String() }

// AddEvent records ev in the run transcript.
func (rc *RunContext) AddEvent(ev Event) {
	if ev.RunID == "" {
		ev.RunID = rc.RunID
	}
	rc.Session.AddEvent(ev)
}

// Err reports the context's cancellation cause, if any.
func (rc *RunContext) Err() error { return rc.Context.Err() }
