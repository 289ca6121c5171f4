package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentstarter"
	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/internal/testutil"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/server"
)

func newAPI(t *testing.T, llm model.Model, optFns ...func(o *agentstarter.Options)) http.Handler {
	t.Helper()
	relay := testutil.NewRelay()
	t.Cleanup(relay.Close)

	s, err := agentstarter.New(llm, append([]func(o *agentstarter.Options){func(o *agentstarter.Options) {
		o.Identity = core.Identity{Name: "api", Suffix: "12345678"}
		o.NtfyBaseURL = relay.URL
	}}, optFns...)...)
	require.NoError(t, err)
	return server.New(s).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, gjson.Result) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, gjson.Parse(rec.Body.String())
}

func TestHealthz(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, body := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Get("status").String())
}

func TestIdentity(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, body := do(t, h, http.MethodGet, "/v1/identity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api_12345678", body.Get("agent_id").String())
	assert.Equal(t, "agent_api_12345678_tasks", body.Get("tasks_channel").String())
	assert.Equal(t, "agent_sync", body.Get("channels.sync").String())
}

func TestTools(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, body := do(t, h, http.MethodGet, "/v1/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), body.Get("tools.#").Int())
	assert.Equal(t, "read_ntfy_messages", body.Get("tools.0.name").String())
	assert.Equal(t, "object", body.Get(`tools.#(name=="do_math").parameters.type`).String())
}

func TestRun(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: "do_math", Arguments: `{"a":2,"b":3,"operation":"sum"}`}),
		model.NewTextResponse("2 + 3 = 5"),
	).Strict()
	h := newAPI(t, llm)

	rec, body := do(t, h, http.MethodPost, "/v1/run", `{"prompt":"add 2 and 3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.NotEmpty(t, body.Get("session_id").String())
	assert.Equal(t, "2 + 3 = 5", body.Get("result.output").String())
	assert.Equal(t, "The result is 5", body.Get("result.tool_results.0.output").String())

	runID := body.Get("result.run_id").String()
	rec, run := do(t, h, http.MethodGet, "/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runID, run.Get("run_id").String())

	rec, list := do(t, h, http.MethodGet, "/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), list.Get("runs.#").Int())
	assert.Equal(t, int64(1), list.Get("runs.0.tool_calls").Int())
}

func TestRun_SessionContinues(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").Script(
		model.NewTextResponse("one"),
		model.NewTextResponse("two"),
	).Strict()
	h := newAPI(t, llm)

	_, first := do(t, h, http.MethodPost, "/v1/run", `{"prompt":"first"}`)
	sid := first.Get("session_id").String()

	_, second := do(t, h, http.MethodPost, "/v1/run", `{"prompt":"second","session_id":"`+sid+`"}`)
	assert.Equal(t, sid, second.Get("session_id").String())
	assert.Len(t, llm.Requests()[1].Contents, 3)
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing prompt", func(t *testing.T) {
		h := newAPI(t, model.NewMockModel("mock", "mock"))
		rec, _ := do(t, h, http.MethodPost, "/v1/run", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("max iterations", func(t *testing.T) {
		llm := model.NewMockModel("mock", "mock").Script(
			model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"location":"Berlin"}`}),
		).Strict()
		h := newAPI(t, llm, func(o *agentstarter.Options) { o.MaxIterations = 1 })

		rec, body := do(t, h, http.MethodPost, "/v1/run", `{"prompt":"weather"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, body.Get("error").String(), "max iterations")
		assert.Equal(t, int64(1), body.Get("result.iterations").Int())
	})

	t.Run("model failure", func(t *testing.T) {
		llm := model.NewMockModel("mock", "mock").Strict()
		h := newAPI(t, llm)

		rec, _ := do(t, h, http.MethodPost, "/v1/run", `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetRun_NotFound(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, _ := do(t, h, http.MethodGet, "/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns_BadLimit(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, _ := do(t, h, http.MethodGet, "/v1/runs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	h := newAPI(t, model.NewMockModel("mock", "mock"))
	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	s, err := agentstarter.New(model.NewMockModel("mock", "mock"), func(o *agentstarter.Options) { o.NtfyBaseURL = relay.URL })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := server.New(s, func(o *server.Options) { o.Addr = "127.0.0.1:0" })

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
