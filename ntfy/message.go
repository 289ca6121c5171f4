package ntfy

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types sent by the relay.
const (
	EventMessage   = "message"
	EventOpen      = "open"
	EventKeepalive = "keepalive"
)

// Message is one relay event as delivered by the JSON and websocket endpoints.
type Message struct {
	ID       string   `json:"id"`
	Time     int64    `json:"time"`
	Event    string   `json:"event,omitempty"`
	Topic    string   `json:"topic"`
	Message  string   `json:"message,omitempty"`
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Timestamp returns the message time in UTC.
func (m Message) Timestamp() time.Time { return time.Unix(m.Time, 0).UTC() }

// IsMessage reports whether the event carries a published message.
func (m Message) IsMessage() bool { return m.Event == "" || m.Event == EventMessage }

// JSON decodes the body when it is a JSON value.
func (m Message) JSON() (any, bool) {
	body := strings.TrimSpace(m.Message)
	if body == "" || !json.Valid([]byte(body)) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false
	}
	return v, true
}

// StatusUpdate is the payload posted by NotifyStatus.
type StatusUpdate struct {
	AgentID   string `json:"agent_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	IsError   bool   `json:"is_error"`
}

// Title renders "Agent <id> - <STATUS>" with an " [ERROR]" suffix for errors.
func (s StatusUpdate) Title() string {
	title := "Agent " + s.AgentID + " - " + strings.ToUpper(s.Status)
	if s.IsError {
		title += " [ERROR]"
	}
	return title
}

// PublishOptions carries optional relay headers.
type PublishOptions struct {
	Title    string
	Tags     []string
	Priority int // 1 (min) .. 5 (max); 0 leaves the relay default
}
