package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentstarter/logging"
)

const (
	// DefaultEndpoint is the SerpAPI search endpoint.
	DefaultEndpoint = "https://serpapi.com/search"
	// DefaultNumResults is used when Search is called with n <= 0.
	DefaultNumResults = 5
	// MaxNumResults is the most SerpAPI returns per page.
	MaxNumResults = 10
	// DefaultTimeout bounds a search request.
	DefaultTimeout = 10 * time.Second
)

// Options configure a Client.
type Options struct {
	APIKey     string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client queries Google through SerpAPI.
type Client struct {
	opts   Options
	logger logging.Logger
}

// NewClient creates a SerpAPI client. A missing key is reported by Search,
// not here, so the tool can still be registered.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		Endpoint: DefaultEndpoint,
		Timeout:  DefaultTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// Search returns up to n organic results for query.
func (c *Client) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if c.opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if n <= 0 {
		n = DefaultNumResults
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.opts.APIKey)
	params.Set("num", strconv.Itoa(min(n, MaxNumResults)))
	params.Set("hl", "en")
	params.Set("gl", "us")

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	c.logger.Info("search.serpapi.start", "query", query, "num", n)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		c.logger.Error("search.serpapi.failed", "query", query, "error", err.Error())
		return nil, fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrInvalidAPIKey
	case http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		c.logger.Error("search.serpapi.failed", "query", query, "status", resp.StatusCode)
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("search: read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search: invalid JSON response from API")
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return nil, &APIError{Message: e.String()}
	}

	var results []Result
	gjson.GetBytes(body, "organic_results").ForEach(func(_, v gjson.Result) bool {
		results = append(results, Result{
			Title:   v.Get("title").String(),
			URL:     v.Get("link").String(),
			Snippet: v.Get("snippet").String(),
		})
		return len(results) < n
	})

	c.logger.Info("search.serpapi.complete", "query", query, "count", len(results))
	return results, nil
}
