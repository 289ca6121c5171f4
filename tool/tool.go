// Package tool implements the function calling subsystem that lets an agent
// invoke named capabilities (relay access, code execution, search, math)
// with schema validated arguments and uniform error reporting.
package tool

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/internal/util"
)

// Tool defines a capability the model may call by name.
//
// Implementations should be safe for concurrent use: the agent may run
// several calls of one batch in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Budgeted is implemented by tools whose own deadline can exceed the
// agent's per-call timeout. The agent waits for the larger of the two.
type Budgeted interface {
	Budget(args map[string]any) time.Duration
}

// WithBudget returns t reporting fn(args) as its time budget.
func WithBudget(t Tool, fn func(args map[string]any) time.Duration) Tool {
	return &budgetedTool{Tool: t, budget: fn}
}

type budgetedTool struct {
	Tool
	budget func(args map[string]any) time.Duration
}

func (t *budgetedTool) Budget(args map[string]any) time.Duration { return t.budget(args) }

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeBadJSON    = "INVALID_ARGUMENTS"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`                 // Underlying cause
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
