package ntfy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/agentstarter/metrics"
)

// Handler receives subscribed messages. Returning an error ends the subscription.
type Handler func(Message) error

// SubscribeURL returns the websocket endpoint for channel.
func (c *Client) SubscribeURL(channel string) string {
	u := *c.base.JoinPath(channel, "ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// Subscribe streams messages published on channel to handler until ctx is
// cancelled (returns nil), the handler fails or the connection drops.
// Open and keepalive events are not delivered.
func (c *Client) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.timeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, c.SubscribeURL(channel), header)
	if err != nil {
		metrics.IncRelay("subscribe", metrics.StatusError)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &Error{Op: "subscribe", Channel: channel, StatusCode: status, Err: err}
	}
	defer conn.Close()
	metrics.IncRelay("subscribe", metrics.StatusOK)

	c.logger.Info("ntfy.subscribe.start", "channel", channel)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Info("ntfy.subscribe.stop", "channel", channel)
				return nil
			}
			return &Error{Op: "subscribe", Channel: channel, Err: err}
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("ntfy.subscribe.parse_failed", "channel", channel, "error", err.Error())
			continue
		}
		if m.Event != EventMessage {
			continue
		}

		if err := handler(m); err != nil {
			if errors.Is(err, ErrStopSubscription) {
				return nil
			}
			return err
		}
	}
}

// ErrStopSubscription can be returned by a Handler to end Subscribe without error.
var ErrStopSubscription = errors.New("stop subscription")
