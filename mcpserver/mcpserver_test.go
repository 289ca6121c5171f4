package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/tool"
	"github.com/hupe1980/agentstarter/tool/builtin"
)

var testIdentity = core.Identity{Name: "agent", Suffix: "cafef00d"}

func newServer(t *testing.T, tools ...tool.Tool) *Server {
	t.Helper()
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	s, err := New(testIdentity, reg)
	require.NoError(t, err)
	return s
}

func handle(t *testing.T, s *Server, msg string) gjson.Result {
	t.Helper()
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return gjson.ParseBytes(b)
}

func makeReq(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	return gjson.GetBytes(b, "text").String()
}

func TestServer_ListTools(t *testing.T) {
	s := newServer(t, builtin.Tools()...)

	res := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	names := res.Get("result.tools.#.name").Array()
	require.Len(t, names, 3)

	math := res.Get(`result.tools.#(name=="do_math")`)
	require.True(t, math.Exists())
	assert.Equal(t, "object", math.Get("inputSchema.type").String())
	assert.True(t, math.Get("inputSchema.properties.operation").Exists())
}

func TestServer_ListTools_EmptySchema(t *testing.T) {
	bare := tool.NewFunctionTool("bare", "no parameters", nil,
		func(*core.ToolContext, map[string]any) (any, error) { return "ok", nil })
	s := newServer(t, bare)

	res := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, "object", res.Get("result.tools.0.inputSchema.type").String())
}

func TestServer_CallTool(t *testing.T) {
	s := newServer(t, builtin.Tools()...)

	res, err := s.handler("do_math")(context.Background(),
		makeReq("do_math", map[string]any{"a": 6, "b": 7, "operation": "multiply"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "The result is 42", resultText(res))
}

func TestServer_CallTool_Errors(t *testing.T) {
	failing := tool.NewFunctionTool("fail", "always fails", nil,
		func(*core.ToolContext, map[string]any) (any, error) {
			return nil, errors.New("boom")
		})
	s := newServer(t, failing)

	res, err := s.handler("fail")(context.Background(), makeReq("fail", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "boom")
	assert.True(t, strings.HasPrefix(resultText(res), "error: "))
}

func TestServer_CallTool_SeesIdentity(t *testing.T) {
	whoami := tool.NewFunctionTool("whoami", "returns the agent id", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			return tc.AgentID(), nil
		})
	s := newServer(t, whoami)

	res := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"whoami","arguments":{}}}`)
	assert.Equal(t, "agent_cafef00d", res.Get("result.content.0.text").String())
}
