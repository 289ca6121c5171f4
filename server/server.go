// Package server exposes a Starter over HTTP.
//
//	POST /v1/run          {"prompt": "...", "session_id": "..."}
//	GET  /v1/identity
//	GET  /v1/tools
//	GET  /v1/runs?limit=N
//	GET  /v1/runs/:id
//	GET  /healthz
//	GET  /metrics
//	ANY  /mcp             (when an MCP handler is configured)
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/agentstarter/agent"
	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/metrics"
	"github.com/hupe1980/agentstarter/ntfy"
	"github.com/hupe1980/agentstarter/session"
	"github.com/hupe1980/agentstarter/tool"
)

// Runner is the part of *agentstarter.Starter the API needs.
type Runner interface {
	Identity() core.Identity
	Tools() *tool.Registry
	Runs() *session.InMemoryStore
	Channels() ntfy.Channels
	TasksChannel() string
	Continue(ctx context.Context, sessionID, prompt string) (string, *agent.Result, error)
}

// Options configure a Server.
type Options struct {
	Addr   string
	Logger logging.Logger
	// MCP is mounted at /mcp when set.
	MCP http.Handler
	// RunTimeout bounds a single /v1/run request; 0 disables.
	RunTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	runner Runner
	engine *gin.Engine
	logger logging.Logger
}

// New builds the router.
func New(runner Runner, optFns ...func(o *Options)) *Server {
	opts := Options{Addr: ":8081", RunTimeout: 5 * time.Minute}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		opts:   opts,
		runner: runner,
		logger: logging.OrNoOp(opts.Logger),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/run", s.run)
	v1.GET("/identity", s.identity)
	v1.GET("/tools", s.tools)
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)

	if opts.MCP != nil {
		r.Any("/mcp", gin.WrapH(opts.MCP))
	}

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", s.opts.Addr, "agent_id", s.runner.Identity().String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server.shutdown", "addr", s.opts.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			s.logger.Debug("server.request", args...)
			return
		}
		s.logger.Info("server.request", args...)
	}
}

type runRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	SessionID string `json:"session_id"`
}

type runResponse struct {
	SessionID string        `json:"session_id"`
	Error     string        `json:"error,omitempty"`
	Result    *agent.Result `json:"result,omitempty"`
}

func (s *Server) run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	sessionID, res, err := s.runner.Continue(ctx, req.SessionID, req.Prompt)
	out := runResponse{SessionID: sessionID, Result: res}
	if err == nil {
		c.JSON(http.StatusOK, out)
		return
	}

	out.Error = err.Error()
	switch {
	case errors.Is(err, agent.ErrMaxIterations):
		c.JSON(http.StatusUnprocessableEntity, out)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, out)
	default:
		c.JSON(http.StatusInternalServerError, out)
	}
}

func (s *Server) identity(c *gin.Context) {
	id := s.runner.Identity()
	c.JSON(http.StatusOK, gin.H{
		"agent_id":      id.String(),
		"name":          id.Name,
		"suffix":        id.Suffix,
		"tasks_channel": s.runner.TasksChannel(),
		"channels":      s.runner.Channels(),
	})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func (s *Server) tools(c *gin.Context) {
	tools := s.runner.Tools().Tools()
	out := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs := s.runner.Runs().ListRuns(limit)
	type summary struct {
		RunID      string `json:"run_id"`
		Output     string `json:"output"`
		Iterations int    `json:"iterations"`
		ToolCalls  int    `json:"tool_calls"`
		Stopped    bool   `json:"stopped"`
	}
	out := make([]summary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summary{
			RunID:      r.RunID,
			Output:     r.Output,
			Iterations: r.Iterations,
			ToolCalls:  len(r.ToolResults),
			Stopped:    r.Stopped,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) getRun(c *gin.Context) {
	res, ok := s.runner.Runs().GetRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, res)
}
