package agent

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/hupe1980/agentstarter/core"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static text/template string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether neither text nor provider is set.
func (i Instruction) IsZero() bool { return i.text == "" && i.provider == nil }

// Resolve returns the instruction text. Static text is rendered as a
// text/template over data extended with agent_id, agent_name and run_id.
// Provider output is returned as is.
func (i Instruction) Resolve(rc *core.RunContext, data map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	state := make(map[string]any, len(data)+3)
	for k, v := range data {
		state[k] = v
	}
	state["agent_id"] = rc.AgentID()
	state["agent_name"] = rc.Identity.Name
	state["run_id"] = rc.RunID

	return render(i.text, state)
}

// instructionFuncs are available to instruction templates.
var instructionFuncs = template.FuncMap{
	"default": func(fallback, val any) any {
		if val == nil || val == "" {
			return fallback
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	},
}

// render executes text as a text/template. The result is a model prompt,
// not markup, so channel names and instruction text are never HTML escaped.
func render(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("instruction").Funcs(instructionFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("instruction template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, state); err != nil {
		return "", fmt.Errorf("instruction template: %w", err)
	}
	return b.String(), nil
}

// DefaultInstruction is used when Options.Instruction is empty.
const DefaultInstruction = `You are {{.agent_id}}, an autonomous assistant.
Use the available tools when they help answer the request. When the task is
complete, state the final answer and then call stop_loop.`
