package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/metrics"
)

type toolOutcome struct {
	event  core.Event
	result ToolResult
}

// executeTools runs one batch of calls with bounded parallelism. Outcomes
// are returned in call order, one per call.
func (a *Agent) executeTools(rc *core.RunContext, calls []core.FunctionCall) []toolOutcome {
	n := len(calls)
	maxPar := a.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]toolOutcome, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = a.executeTool(rc, fc)
		}(i, fc)
	}
	wg.Wait()

	rc.LogDebug("agent.tools.batch.complete",
		"run_id", rc.RunID,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return outcomes
}

func (a *Agent) executeTool(rc *core.RunContext, fc core.FunctionCall) toolOutcome {
	toolCtx := core.NewToolContext(rc, fc.ID)

	ctx := rc.Context
	if timeout := a.toolTimeout(fc); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	toolCtx = toolCtx.WithContext(ctx)

	rc.LogInfo("agent.tool.start", "run_id", rc.RunID, "tool", fc.Name, "function_call_id", fc.ID)

	start := time.Now()
	var (
		result any
		err    error
	)
	if err = rc.Err(); err == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Tool: fc.Name, Value: r, Stack: debug.Stack()}
					rc.LogError("agent.tool.panic", "run_id", rc.RunID, "tool", fc.Name, "recover", fmt.Sprint(r))
				}
			}()
			result, err = a.opts.Tools.Execute(toolCtx, fc.Name, fc.Arguments)
		}()
	}
	dur := time.Since(start)

	metrics.ObserveTool(fc.Name, metrics.StatusOf(err), dur)
	rc.LogInfo("agent.tool.executed",
		"run_id", rc.RunID,
		"tool", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(rc.RunID, rc.AgentID(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)

	tr := ToolResult{CallID: fc.ID, Name: fc.Name, Arguments: fc.Arguments, Duration: dur}
	if resp := ev.GetFunctionResponses(); len(resp) == 1 {
		if err != nil {
			tr.Error = resp[0].Error
		} else {
			tr.Output = resp[0].Text()
		}
	}
	return toolOutcome{event: ev, result: tr}
}

// toolTimeout is the deadline for one call: ToolTimeout, raised to the
// tool's own budget when it declares a larger one. Zero means none.
func (a *Agent) toolTimeout(fc core.FunctionCall) time.Duration {
	timeout := a.opts.ToolTimeout
	if timeout <= 0 {
		return 0
	}
	if b := a.opts.Tools.Budget(fc.Name, fc.Arguments); b > timeout {
		return b
	}
	return timeout
}

// PanicError is reported to the model when a tool panics.
type PanicError struct {
	Tool  string
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("tool %s panicked: %v", p.Tool, p.Value) }
