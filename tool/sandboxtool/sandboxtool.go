// Package sandboxtool exposes the code sandbox as the execute_code tool.
package sandboxtool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/sandbox"
	"github.com/hupe1980/agentstarter/tool"
)

// Executor runs fenced code. *sandbox.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, completion string, req sandbox.Request) (*sandbox.Result, error)
}

// Budgeter reports how long an execution may take, retries included.
// *sandbox.Client satisfies it.
type Budgeter interface {
	Budget(req sandbox.Request) time.Duration
}

// Args are the execute_code arguments.
type Args struct {
	Completion     string `json:"completion"`
	Stdin          string `json:"stdin,omitempty" description:"Input to provide to the program via standard input (stdin). Use this for programs that read input interactively."`
	CompileTimeout int    `json:"compile_timeout" default:"10" description:"Compilation timeout in seconds (for compiled languages like C++, Java). Default: 10"`
	RunTimeout     int    `json:"run_timeout" default:"5" description:"Execution timeout in seconds. The program will be terminated if it runs longer than this. Default: 5"`
	MemoryLimitMB  int    `json:"memory_limit_mb" default:"128" description:"Memory limit in megabytes. The program will be terminated if it exceeds this limit. Default: 128"`
	Language       string `json:"language" default:"python" description:"The programming language of the code. Default: python"`
}

// New returns execute_code bound to exec.
func New(exec Executor) tool.Tool {
	t := tool.NewTypedTool("execute_code",
		"Execute code in a sandboxed environment. Supports multiple programming languages "+
			"including Python, JavaScript, Java, C++, and more. Returns the output, errors, "+
			"and execution statistics. Use this when you need to run code to compute results, "+
			"test algorithms, or verify solutions.",
		func(tc *core.ToolContext, args Args) (any, error) {
			res, err := exec.Execute(tc.Context(), args.Completion, args.request())
			if err != nil {
				return nil, err
			}
			return Format(res), nil
		})

	schema := t.Parameters()
	props := schema["properties"].(map[string]any)
	lang := props["language"].(map[string]any)
	enum := make([]any, len(sandbox.SupportedLanguages))
	for i, l := range sandbox.SupportedLanguages {
		enum[i] = l
	}
	lang["enum"] = enum
	props["completion"] = map[string]any{
		"type": "string",
		"description": "The code to execute. Must be wrapped in markdown code blocks " +
			"(```python ... ``` or ``` ... ```). The code will be automatically extracted from code blocks.",
	}
	t = t.WithParameters(schema)

	b, ok := exec.(Budgeter)
	if !ok {
		return t
	}
	return tool.WithBudget(t, func(raw map[string]any) time.Duration {
		var args Args
		if err := tool.Decode(raw, &args); err != nil {
			return 0
		}
		return b.Budget(args.request())
	})
}

func (a Args) request() sandbox.Request {
	return sandbox.Request{
		Stdin:          a.Stdin,
		CompileTimeout: a.CompileTimeout,
		RunTimeout:     a.RunTimeout,
		MemoryLimitMB:  a.MemoryLimitMB,
		Language:       a.Language,
	}
}

// Format renders a sandbox result for the model.
func Format(res *sandbox.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", res.Status)
	if res.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", res.Message)
	}
	if cr := res.CompileResult; cr != nil && cr.Stderr != "" {
		fmt.Fprintf(&b, "Compile stderr:\n%s\n", cr.Stderr)
	}
	if rr := res.RunResult; rr != nil {
		fmt.Fprintf(&b, "Run status: %s\n", rr.Status)
		if rr.ReturnCode != nil {
			fmt.Fprintf(&b, "Return code: %d\n", *rr.ReturnCode)
		}
		fmt.Fprintf(&b, "Execution time: %.3fs\n", rr.ExecutionTime)
		if rr.Stdout != "" {
			fmt.Fprintf(&b, "Stdout:\n%s\n", rr.Stdout)
		}
		if rr.Stderr != "" {
			fmt.Fprintf(&b, "Stderr:\n%s\n", rr.Stderr)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
