package tool

import (
	"github.com/hupe1980/agentstarter/core"
)

// StopLoopToolName is the name the model uses to end its own loop.
const StopLoopToolName = "stop_loop"

// stopLoopTool asks the agent to finish after the current batch of calls.
type stopLoopTool struct{}

// NewStopLoopTool constructs the stop_loop tool instance.
func NewStopLoopTool() Tool { return &stopLoopTool{} }

func (t *stopLoopTool) Name() string { return StopLoopToolName }

func (t *stopLoopTool) Description() string {
	return "Call this exactly once when the final answer is known and has been stated to the user. " +
		"This must be the last action. Do not call any other tools or produce further reasoning after calling stop_loop."
}

func (t *stopLoopTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *stopLoopTool) Call(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	toolCtx.StopLoop()
	return "Loop stopped", nil
}
