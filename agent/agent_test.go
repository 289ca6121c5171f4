package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/internal/testutil"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/tool"
)

var testIdentity = core.Identity{Name: "agent", Suffix: "1a2b3c4d"}

func newRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	return reg
}

func echoTool() tool.Tool {
	return tool.NewFunctionTool("echo", "Echo the text argument",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return "echo: " + args["text"].(string), nil
		})
}

func call(id, name, args string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: name, Arguments: args}
}

func TestAgent_Run_TextOnly(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(model.NewTextResponse("4")).Strict()
	a := New(testIdentity, llm)

	res, err := a.Run(context.Background(), "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "4", res.Output)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, "agent_1a2b3c4d", res.AgentID)
	assert.False(t, res.Stopped)
	require.Len(t, res.Events, 2)
	assert.Equal(t, core.RoleUser, res.Events[0].Content.Role)
	assert.True(t, res.Events[1].IsFinalResponse())
	for _, ev := range res.Events {
		assert.Equal(t, res.RunID, ev.RunID)
	}

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are agent_1a2b3c4d")
	require.Len(t, reqs[0].Contents, 1)
	assert.Equal(t, "What is 2+2?", reqs[0].Contents[0].Text())
}

func TestAgent_Run_ToolRoundTrip(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewToolCallResponse(call("c1", "echo", `{"text":"hi"}`)),
		model.NewTextResponse("done"),
	).Strict()

	a := New(testIdentity, llm, func(o *Options) { o.Tools = newRegistry(t, echoTool()) })

	res, err := a.Run(context.Background(), "say hi")
	require.NoError(t, err)

	assert.Equal(t, "done", res.Output)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "echo: hi", res.ToolResults[0].Output)
	assert.Empty(t, res.ToolResults[0].Error)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "echo", reqs[0].Tools[0].Function.Name)

	second := reqs[1].Contents
	require.Len(t, second, 3)
	assert.Equal(t, core.RoleAssistant, second[1].Role)
	assert.Equal(t, core.RoleTool, second[2].Role)
	fr := second[2].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "echo: hi", fr.Response)
}

func TestAgent_Run_ToolErrorsGoBackToModel(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewToolCallResponse(
			call("c1", "missing", `{}`),
			call("c2", "echo", `{}`),
			call("c3", "echo", `not json`),
		),
		model.NewTextResponse("recovered"),
	).Strict()

	a := New(testIdentity, llm, func(o *Options) { o.Tools = newRegistry(t, echoTool()) })

	res, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Output)

	require.Len(t, res.ToolResults, 3)
	assert.Contains(t, res.ToolResults[0].Error, "unknown tool")
	assert.Contains(t, res.ToolResults[1].Error, "validation")
	assert.Contains(t, res.ToolResults[2].Error, "JSON")

	last := llm.Requests()[1].Contents
	fr := last[len(last)-1].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.True(t, strings.HasPrefix(fr.Text(), "error: "))
}

func TestAgent_Run_StopLoop(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.Response{Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.TextPart{Text: "The answer is 4."},
			core.FunctionCallPart{FunctionCall: call("c1", "echo", `{"text":"x"}`)},
			core.FunctionCallPart{FunctionCall: call("c2", tool.StopLoopToolName, `{}`)},
		}}},
	).Strict()

	a := New(testIdentity, llm, func(o *Options) {
		o.Tools = newRegistry(t, echoTool(), tool.NewStopLoopTool())
	})

	res, err := a.Run(context.Background(), "2+2")
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, "The answer is 4.", res.Output)
	require.Len(t, res.ToolResults, 2)
	assert.Equal(t, "echo", res.ToolResults[0].Name)
	assert.Equal(t, "Loop stopped", res.ToolResults[1].Output)

	last := res.Events[len(res.Events)-1]
	assert.True(t, last.StopRequested())
}

func TestAgent_Run_MaxIterations(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	for i := 0; i < 5; i++ {
		llm.Script(model.NewToolCallResponse(call("c", "echo", `{"text":"again"}`)))
	}

	a := New(testIdentity, llm, func(o *Options) {
		o.Tools = newRegistry(t, echoTool())
		o.MaxIterations = 3
	})

	res, err := a.Run(context.Background(), "loop forever")
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.ErrorIs(t, err, core.ErrModelCallLimit)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.ToolResults, 3)
	assert.Len(t, llm.Requests(), 3)
}

func TestAgent_Run_ModelError(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Strict()
	a := New(testIdentity, llm)

	res, err := a.Run(context.Background(), "hi")
	require.ErrorIs(t, err, model.ErrScriptExhausted)
	require.NotNil(t, res)

	last := res.Events[len(res.Events)-1]
	require.NotNil(t, last.ErrorMessage)
}

func TestAgent_Run_EmptyInput(t *testing.T) {
	a := New(testIdentity, model.NewMockModel("mock", "mock"))
	_, err := a.RunContent(context.Background(), &core.Content{Role: core.RoleUser})
	require.Error(t, err)
}

func TestAgent_Run_Streaming(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hi", "hello")

	var (
		mu       sync.Mutex
		partials []string
	)
	a := New(testIdentity, llm, func(o *Options) {
		o.EnableStreaming = true
		o.OnEvent = func(ev core.Event) {
			if ev.IsPartial() {
				mu.Lock()
				partials = append(partials, ev.Text())
				mu.Unlock()
			}
		}
	})

	res, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Output)
	assert.Equal(t, []string{"h", "e", "l", "l", "o"}, partials)

	for _, ev := range res.Events {
		assert.False(t, ev.IsPartial(), "partials are not part of the transcript")
	}
}

func TestAgent_Continue(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewTextResponse("Nice to meet you, Ada."),
		model.NewTextResponse("Your name is Ada."),
	).Strict()
	a := New(testIdentity, llm)
	sess := a.NewSession()

	_, err := a.Continue(context.Background(), sess, "My name is Ada.")
	require.NoError(t, err)
	res, err := a.Continue(context.Background(), sess, "What is my name?")
	require.NoError(t, err)

	assert.Len(t, res.Events, 2)
	assert.Equal(t, 4, sess.Len())
	assert.Len(t, llm.Requests()[1].Contents, 3)
}

func TestAgent_Run_HistoryTrim(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewToolCallResponse(call("c1", "echo", `{"text":"1"}`)),
		model.NewToolCallResponse(call("c2", "echo", `{"text":"2"}`)),
		model.NewTextResponse("done"),
	).Strict()

	a := New(testIdentity, llm, func(o *Options) {
		o.Tools = newRegistry(t, echoTool())
		o.MaxHistoryMessages = 2
	})

	_, err := a.Run(context.Background(), "go")
	require.NoError(t, err)

	third := llm.Requests()[2].Contents
	require.Len(t, third, 2)
	assert.Equal(t, core.RoleAssistant, third[0].Role)
	assert.Equal(t, core.RoleTool, third[1].Role)
}

func TestAgent_Run_Cancelled(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	a := New(testIdentity, llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, "hi")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAgent_Run_InstructionData(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(model.NewTextResponse("ok")).Strict()
	a := New(testIdentity, llm, func(o *Options) {
		o.Instruction = NewInstructionFromText("Read {{.commands_channel}} as {{.agent_id}}")
		o.InstructionData = map[string]any{"commands_channel": "agent_commands"}
		o.ToolTimeout = time.Second
	})

	_, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Read agent_commands as agent_1a2b3c4d", llm.Requests()[0].Instructions)
}

func TestAgent_Continue_SeededHistory(t *testing.T) {
	sess := core.NewSession("s1", testIdentity.String())
	sess.AddEvent(testutil.NewEventBuilder().Run("old").UserText("What's 2+2?").Build())
	sess.AddEvent(testutil.NewEventBuilder().Run("old").FunctionCall("c1", "do_math", `{"a":2,"b":2,"operation":"sum"}`).Build())
	sess.AddEvent(testutil.NewEventBuilder().Run("old").FunctionResponse("c1", "do_math", "The result is 4", nil).Build())
	sess.AddEvent(testutil.NewEventBuilder().Run("old").AssistantText("4").Partial(true).Build())
	sess.AddEvent(testutil.NewEventBuilder().Run("old").AssistantText("It is 4.").TurnComplete(true).Build())

	llm := model.NewMockModel("mock", "mock").Script(model.NewTextResponse("8")).Strict()
	a := New(testIdentity, llm)

	res, err := a.Continue(context.Background(), sess, "And doubled?")
	require.NoError(t, err)
	assert.Equal(t, "8", res.Output)
	require.Len(t, res.Events, 2)

	contents := llm.Requests()[0].Contents
	require.Len(t, contents, 5)
	assert.Equal(t, core.RoleTool, contents[2].Role)
	assert.Equal(t, "It is 4.", contents[3].Text())
	assert.Equal(t, "And doubled?", contents[4].Text())
}
