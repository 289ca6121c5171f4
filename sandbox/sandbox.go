package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentstarter/internal/retry"
	"github.com/hupe1980/agentstarter/logging"
)

const (
	// DefaultURL is the local SandboxFusion endpoint.
	DefaultURL = "http://localhost:8080/run_code"
	// DefaultLanguage is used when Request.Language is empty.
	DefaultLanguage = "python"
	// DefaultCompileTimeout in seconds.
	DefaultCompileTimeout = 10
	// DefaultRunTimeout in seconds.
	DefaultRunTimeout = 5
	// DefaultMemoryLimitMB caps process memory.
	DefaultMemoryLimitMB = 128
	// DefaultAPITimeout is added to compile and run timeouts for each HTTP request.
	DefaultAPITimeout = 10 * time.Second
	// DefaultMaxRetries is the total attempt budget for gateway timeouts.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base of the linear backoff.
	DefaultRetryDelay = time.Second
)

// Request describes one execution. Zero values take the package defaults.
type Request struct {
	Code           string
	Stdin          string
	CompileTimeout int // seconds
	RunTimeout     int // seconds
	MemoryLimitMB  int
	Language       string
}

func (r Request) withDefaults() Request {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.CompileTimeout <= 0 {
		r.CompileTimeout = DefaultCompileTimeout
	}
	if r.RunTimeout <= 0 {
		r.RunTimeout = DefaultRunTimeout
	}
	if r.MemoryLimitMB <= 0 {
		r.MemoryLimitMB = DefaultMemoryLimitMB
	}
	return r
}

type payload struct {
	CompileTimeout int               `json:"compile_timeout"`
	RunTimeout     int               `json:"run_timeout"`
	Code           string            `json:"code"`
	Stdin          string            `json:"stdin"`
	MemoryLimitMB  int               `json:"memory_limit_MB"`
	Language       string            `json:"language"`
	Files          map[string]string `json:"files"`
	FetchFiles     []string          `json:"fetch_files"`
}

// CommandResult is the outcome of the compile or run stage.
type CommandResult struct {
	Status        string  `json:"status"`
	ExecutionTime float64 `json:"execution_time"`
	ReturnCode    *int    `json:"return_code"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
}

// Result is the service response.
type Result struct {
	Status        string            `json:"status"`
	Message       string            `json:"message"`
	CompileResult *CommandResult    `json:"compile_result"`
	RunResult     *CommandResult    `json:"run_result"`
	Files         map[string]string `json:"files"`
}

// Succeeded reports whether the service ran the code to completion.
func (r *Result) Succeeded() bool { return strings.EqualFold(r.Status, "Success") }

// Stdout returns the run stage's standard output.
func (r *Result) Stdout() string {
	if r.RunResult == nil {
		return ""
	}
	return r.RunResult.Stdout
}

// Stderr returns run stderr, falling back to compile stderr.
func (r *Result) Stderr() string {
	if r.RunResult != nil && r.RunResult.Stderr != "" {
		return r.RunResult.Stderr
	}
	if r.CompileResult != nil {
		return r.CompileResult.Stderr
	}
	return ""
}

// Options configure a Client.
type Options struct {
	URL        string
	HTTPClient *http.Client
	Logger     logging.Logger
	MaxRetries int
	RetryDelay time.Duration
	APITimeout time.Duration
}

// Client calls the sandbox service.
type Client struct {
	opts   Options
	logger logging.Logger
}

// NewClient creates a sandbox client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		URL:        DefaultURL,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		APITimeout: DefaultAPITimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Client{opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// URL returns the service endpoint.
func (c *Client) URL() string { return c.opts.URL }

// Budget is the longest Run can take for req: every attempt's compile, run
// and API allowance plus the linear backoff between attempts.
func (c *Client) Budget(req Request) time.Duration {
	req = req.withDefaults()
	perAttempt := c.attemptTimeout(req)
	attempts := c.opts.MaxRetries
	budget := time.Duration(attempts) * perAttempt
	for i := 0; i < attempts-1; i++ {
		budget += retry.Linear(c.opts.RetryDelay)(i)
	}
	return budget
}

func (c *Client) attemptTimeout(req Request) time.Duration {
	return time.Duration(req.CompileTimeout+req.RunTimeout)*time.Second + c.opts.APITimeout
}

// Execute extracts the fenced code from completion and runs it with the
// settings in req (req.Code is ignored).
func (c *Client) Execute(ctx context.Context, completion string, req Request) (*Result, error) {
	code, err := ExtractCode(completion)
	if err != nil {
		return nil, err
	}
	req.Code = code
	return c.Run(ctx, req)
}

// Run executes req.Code. Only gateway timeouts are retried.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	if !IsSupported(req.Language) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(payload{
		CompileTimeout: req.CompileTimeout,
		RunTimeout:     req.RunTimeout,
		Code:           req.Code,
		Stdin:          req.Stdin,
		MemoryLimitMB:  req.MemoryLimitMB,
		Language:       req.Language,
		Files:          map[string]string{},
		FetchFiles:     []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: encode request: %w", err)
	}

	requestID := uuid.NewString()
	timeout := c.attemptTimeout(req)

	var result *Result
	err = retry.Do(ctx, retry.Config{
		MaxAttempts: c.opts.MaxRetries,
		Delay:       retry.Linear(c.opts.RetryDelay),
		RetryIf:     func(err error) bool { return errors.Is(err, ErrGatewayTimeout) },
	}, func(attempt int) error {
		c.logger.Info("sandbox.run.attempt", "request_id", requestID, "attempt", attempt+1, "max_attempts", c.opts.MaxRetries, "language", req.Language)

		res, err := c.post(ctx, body, timeout)
		if err != nil {
			c.logger.Warn("sandbox.run.failed", "request_id", requestID, "attempt", attempt+1, "error", err.Error())
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: api call failed: %w", err)
	}

	c.logger.Info("sandbox.run.complete", "request_id", requestID, "status", result.Status)
	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, ErrGatewayTimeout
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
