package ntfy

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstarter/internal/testutil"
)

func TestSubscribeURL(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	assert.Equal(t, "wss://ntfy.sh/agent_commands/ws", c.SubscribeURL("agent_commands"))

	c, err = NewClient(func(o *Options) { o.BaseURL = "http://localhost:80" })
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:80/x/ws", c.SubscribeURL("x"))
}

func TestClient_Subscribe(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan Message, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Subscribe(ctx, "live", func(m Message) error {
			received <- m
			if m.Message == "last" {
				return ErrStopSubscription
			}
			return nil
		})
	}()

	require.True(t, relay.WaitForSubscribers("live", 1, 2*time.Second))

	_, err := c.Publish(ctx, "live", "first", PublishOptions{})
	require.NoError(t, err)
	_, err = c.Publish(ctx, "live", "last", PublishOptions{})
	require.NoError(t, err)

	require.NoError(t, <-errCh)
	close(received)

	var got []string
	for m := range received {
		got = append(got, m.Message)
	}
	assert.Equal(t, []string{"first", "last"}, got)
}

func TestClient_Subscribe_Cancel(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Subscribe(ctx, "idle", func(Message) error { return nil })
	}()

	require.True(t, relay.WaitForSubscribers("idle", 1, 2*time.Second))
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestClient_Subscribe_HandlerError(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	boom := errors.New("boom")
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Subscribe(context.Background(), "fail", func(Message) error { return boom })
	}()

	require.True(t, relay.WaitForSubscribers("fail", 1, 2*time.Second))
	relay.Seed("fail", "trigger")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, boom)
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe did not return handler error")
	}
}

func TestClient_Subscribe_DialError(t *testing.T) {
	relay := testutil.NewRelay()
	defer relay.Close()
	c := newTestClient(t, relay)

	relay.FailWith("denied", http.StatusForbidden)
	err := c.Subscribe(context.Background(), "denied", func(Message) error { return nil })
	var ne *Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusForbidden, ne.StatusCode)
}
