package ntfy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/metrics"
)

const (
	// DefaultBaseURL is the public relay.
	DefaultBaseURL = "https://ntfy.sh"
	// DefaultTimeout bounds each request.
	DefaultTimeout = 10 * time.Second
	// DefaultReadLimit is used when Read is called with limit <= 0.
	DefaultReadLimit = 10
	// MaxReadLimit caps Read.
	MaxReadLimit = 100
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
	// Token, when set, is sent as a bearer token (self-hosted relays with ACLs).
	Token string
}

// Client talks to an ntfy relay.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *http.Client
	token   string
	logger  logging.Logger
	now     func() time.Time
}

// NewClient creates a relay client.
func NewClient(optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ntfy: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ntfy: base url must be http or https, got %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &Client{
		base:    base,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		token:   opts.Token,
		logger:  logging.OrNoOp(opts.Logger),
		now:     time.Now,
	}, nil
}

// BaseURL returns the relay base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

func (c *Client) topicURL(channel string, elem ...string) string {
	return c.base.JoinPath(append([]string{channel}, elem...)...).String()
}

// Read fetches cached messages from channel and returns the most recent
// limit ones, oldest first. limit <= 0 means DefaultReadLimit; values above
// MaxReadLimit are capped. Lines that are not valid JSON are skipped.
func (c *Client) Read(ctx context.Context, channel string, limit int) (msgs []Message, err error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	defer func() { metrics.IncRelay("read", metrics.StatusOf(err)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.topicURL(channel, "json")+"?poll=1", nil)
	if err != nil {
		return nil, &Error{Op: "read", Channel: channel, Err: err}
	}
	c.authorize(req)

	c.logger.Info("ntfy.read.start", "channel", channel, "limit", limit)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ntfy.read.failed", "channel", channel, "error", err.Error(), "timeout", IsTimeout(err))
		return nil, &Error{Op: "read", Channel: channel, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("ntfy.read.failed", "channel", channel, "status", resp.StatusCode)
		return nil, &Error{Op: "read", Channel: channel, StatusCode: resp.StatusCode, Err: err}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			c.logger.Warn("ntfy.read.parse_failed", "channel", channel, "line", string(line))
			continue
		}
		if !m.IsMessage() {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Op: "read", Channel: channel, StatusCode: resp.StatusCode, Err: err}
	}

	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	c.logger.Info("ntfy.read.complete", "channel", channel, "count", len(msgs))
	return msgs, nil
}

// Publish posts message to channel. The relay's echo is returned when it
// parses; otherwise a Message built from the request.
func (c *Client) Publish(ctx context.Context, channel, message string, opts PublishOptions) (out *Message, err error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}

	defer func() { metrics.IncRelay("publish", metrics.StatusOf(err)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.topicURL(channel), strings.NewReader(message))
	if err != nil {
		return nil, &Error{Op: "publish", Channel: channel, Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if opts.Title != "" {
		req.Header.Set("Title", opts.Title)
	}
	if len(opts.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(opts.Tags, ","))
	}
	if opts.Priority > 0 {
		req.Header.Set("Priority", strconv.Itoa(opts.Priority))
	}
	c.authorize(req)

	c.logger.Info("ntfy.publish.start", "channel", channel, "bytes", len(message))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ntfy.publish.failed", "channel", channel, "error", err.Error(), "timeout", IsTimeout(err))
		return nil, &Error{Op: "publish", Channel: channel, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("ntfy.publish.failed", "channel", channel, "status", resp.StatusCode)
		return nil, &Error{Op: "publish", Channel: channel, StatusCode: resp.StatusCode, Err: err}
	}

	echo := &Message{}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(body, echo); err != nil || echo.ID == "" {
		echo = &Message{Topic: channel, Message: message, Title: opts.Title, Time: c.now().Unix(), Event: EventMessage}
	}

	c.logger.Info("ntfy.publish.complete", "channel", channel, "id", echo.ID)
	return echo, nil
}

// NotifyStatus publishes update as JSON on channel. AgentID and Status are
// required; an empty Timestamp is filled with the current UTC time.
func (c *Client) NotifyStatus(ctx context.Context, channel string, update StatusUpdate) (*Message, error) {
	if update.AgentID == "" || update.Status == "" {
		return nil, errors.New("ntfy: status update needs agent_id and status")
	}
	if update.Timestamp == "" {
		update.Timestamp = c.now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("ntfy: encode status: %w", err)
	}

	opts := PublishOptions{Title: update.Title()}
	if update.IsError {
		opts.Tags = []string{"warning"}
		opts.Priority = 4
	}
	return c.Publish(ctx, channel, string(payload), opts)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrChannelNotFound
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, msg)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}

// ClampLimit applies the Read limit rules.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultReadLimit
	case limit > MaxReadLimit:
		return MaxReadLimit
	default:
		return limit
	}
}
