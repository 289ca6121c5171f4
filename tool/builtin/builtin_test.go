package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/tool"
)

func toolCtx() *core.ToolContext {
	return core.NewStandaloneToolContext(context.Background(), core.NewIdentity("test"), nil)
}

func TestMathTool(t *testing.T) {
	math := NewMathTool()

	tests := []struct {
		op   string
		a, b int
		want string
	}{
		{"sum", 2, 3, "The result is 5"},
		{"subtract", 2, 3, "The result is -1"},
		{"multiply", 4, 3, "The result is 12"},
		{"divide", 7, 2, "The result is 3.5"},
		{"divide", 6, 3, "The result is 2"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			out, err := math.Call(toolCtx(), map[string]any{"a": tt.a, "b": tt.b, "operation": tt.op})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMathTool_Errors(t *testing.T) {
	math := NewMathTool()

	_, err := math.Call(toolCtx(), map[string]any{"a": 1, "b": 0, "operation": "divide"})
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeExecution, te.Code)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = math.Call(toolCtx(), map[string]any{"a": 1, "b": 2, "operation": "modulo"})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidation, te.Code)

	_, err = math.Call(toolCtx(), map[string]any{"a": 1, "operation": "sum"})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidation, te.Code)
}

func TestWeatherTool(t *testing.T) {
	out, err := NewWeatherTool().Call(toolCtx(), map[string]any{"location": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "The weather in Berlin is sunny and 72°F", out)
}

func TestTools(t *testing.T) {
	reg, err := tool.NewRegistry(Tools()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"do_math", "get_weather", "stop_loop"}, reg.Names())
}
