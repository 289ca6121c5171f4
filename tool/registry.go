package tool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/model"
)

// ErrDuplicateTool is returned when registering a name twice.
var ErrDuplicateTool = errors.New("tool already registered")

// Registry is an ordered, concurrency safe set of tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds tools in order. Nothing is added if any name is taken.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return errors.New("tool name must not be empty")
		}
		if _, ok := r.tools[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		seen[name] = struct{}{}
	}

	for _, t := range tools {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tools returns tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions renders the tools as model function declarations.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.Tools()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Budget reports the time the named tool asks for with rawArgs, or 0 when
// the tool is unknown, not Budgeted or the arguments do not parse.
func (r *Registry) Budget(name, rawArgs string) time.Duration {
	t, ok := r.Get(name)
	if !ok {
		return 0
	}
	b, ok := t.(Budgeted)
	if !ok {
		return 0
	}
	args, err := ParseArguments(rawArgs)
	if err != nil {
		return 0
	}
	return b.Budget(args)
}

// Execute runs the named tool with JSON encoded arguments.
func (r *Registry) Execute(toolCtx *core.ToolContext, name, rawArgs string) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{Tool: name, Message: fmt.Sprintf("unknown tool %q", name), Code: CodeNotFound}
	}

	args, err := ParseArguments(rawArgs)
	if err != nil {
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeBadJSON, Err: err}
	}

	return t.Call(toolCtx, args)
}
