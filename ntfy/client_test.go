package ntfy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstarter/internal/testutil"
)

func newTestClient(t *testing.T, relay *testutil.Relay) *Client {
	t.Helper()
	c, err := NewClient(func(o *Options) {
		o.BaseURL = relay.URL
		o.Timeout = 2 * time.Second
	})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewClient()
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, c.BaseURL())
		assert.Equal(t, DefaultTimeout, c.Timeout())
	})

	t.Run("rejects unsupported scheme", func(t *testing.T) {
		_, err := NewClient(func(o *Options) { o.BaseURL = "ftp://example.com" })
		require.Error(t, err)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		c, err := NewClient(func(o *Options) { o.BaseURL = "http://localhost:8080/" })
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", c.BaseURL())
	})
}

func TestClient_Read(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	for i := 1; i <= 15; i++ {
		relay.Seed("agent_commands", fmt.Sprintf("msg %d", i))
	}

	t.Run("default limit keeps the latest", func(t *testing.T) {
		msgs, err := c.Read(context.Background(), "agent_commands", 0)
		require.NoError(t, err)
		require.Len(t, msgs, DefaultReadLimit)
		assert.Equal(t, "msg 6", msgs[0].Message)
		assert.Equal(t, "msg 15", msgs[len(msgs)-1].Message)
	})

	t.Run("explicit limit", func(t *testing.T) {
		msgs, err := c.Read(context.Background(), "agent_commands", 3)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "msg 13", msgs[0].Message)
	})

	t.Run("empty channel", func(t *testing.T) {
		msgs, err := c.Read(context.Background(), "quiet", 5)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("invalid channel", func(t *testing.T) {
		_, err := c.Read(context.Background(), "bad channel!", 5)
		assert.ErrorIs(t, err, ErrInvalidChannel)
	})
}

func TestClient_Read_SkipsBadLines(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	relay.Seed("mixed", "first")
	relay.SeedRaw("mixed", "not json", `{"id":"k1","event":"keepalive","topic":"mixed"}`)
	relay.Seed("mixed", "second")

	msgs, err := c.Read(context.Background(), "mixed", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Message)
	assert.Equal(t, "second", msgs[1].Message)
}

func TestClient_Read_Status(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	relay.FailWith("gone", http.StatusNotFound)
	_, err := c.Read(context.Background(), "gone", 5)
	require.ErrorIs(t, err, ErrChannelNotFound)

	relay.FailWith("broken", http.StatusInternalServerError)
	_, err = c.Read(context.Background(), "broken", 5)
	var ne *Error
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "read", ne.Op)
	assert.Equal(t, http.StatusInternalServerError, ne.StatusCode)
}

func TestClient_Publish(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	msg, err := c.Publish(context.Background(), "agent_sync", "hello", PublishOptions{
		Title:    "Greeting",
		Tags:     []string{"wave", "robot"},
		Priority: 3,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "Greeting", msg.Title)

	stored := relay.Messages("agent_sync")
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"wave", "robot"}, stored[0].Tags)
	assert.Equal(t, 3, stored[0].Priority)

	headers := relay.Headers()
	require.Len(t, headers, 1)
	assert.Equal(t, "Greeting", headers[0].Get("Title"))
}

func TestClient_Publish_Errors(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	_, err := c.Publish(context.Background(), "agent_sync", "", PublishOptions{})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = c.Publish(context.Background(), "", "x", PublishOptions{})
	assert.ErrorIs(t, err, ErrInvalidChannel)

	relay.FailWith("locked", http.StatusForbidden)
	_, err = c.Publish(context.Background(), "locked", "x", PublishOptions{})
	var ne *Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusForbidden, ne.StatusCode)
}

func TestClient_Token(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()

	c, err := NewClient(func(o *Options) {
		o.BaseURL = relay.URL
		o.Token = "tk_secret"
	})
	require.NoError(t, err)

	_, err = c.Publish(context.Background(), "private", "x", PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tk_secret", relay.Headers()[0].Get("Authorization"))
}

func TestClient_NotifyStatus(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	t.Run("ok", func(t *testing.T) {
		_, err := c.NotifyStatus(context.Background(), "agent_sync", StatusUpdate{
			AgentID: "agent_1234abcd",
			Status:  "working",
			Message: "starting task",
		})
		require.NoError(t, err)

		stored := relay.Messages("agent_sync")
		require.Len(t, stored, 1)
		assert.Equal(t, "Agent agent_1234abcd - WORKING", stored[0].Title)

		var payload StatusUpdate
		require.NoError(t, json.Unmarshal([]byte(stored[0].Message), &payload))
		assert.Equal(t, "2024-05-01T12:00:00Z", payload.Timestamp)
		assert.False(t, payload.IsError)
	})

	t.Run("error status", func(t *testing.T) {
		_, err := c.NotifyStatus(context.Background(), "agent_errors", StatusUpdate{
			AgentID: "agent_1234abcd",
			Status:  "failed",
			IsError: true,
		})
		require.NoError(t, err)

		stored := relay.Messages("agent_errors")
		require.Len(t, stored, 1)
		assert.Equal(t, "Agent agent_1234abcd - FAILED [ERROR]", stored[0].Title)
		assert.Equal(t, []string{"warning"}, stored[0].Tags)
		assert.Equal(t, 4, stored[0].Priority)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := c.NotifyStatus(context.Background(), "agent_sync", StatusUpdate{Status: "x"})
		require.Error(t, err)
	})
}

func TestClient_Timeout(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()

	c, err := NewClient(func(o *Options) {
		o.BaseURL = relay.URL
	})
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = c.Read(ctx, "agent_commands", 1)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultReadLimit, ClampLimit(0))
	assert.Equal(t, DefaultReadLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxReadLimit, ClampLimit(500))
}
