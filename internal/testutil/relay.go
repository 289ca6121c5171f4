package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RelayMessage mirrors the relay's JSON event shape.
type RelayMessage struct {
	ID       string   `json:"id"`
	Time     int64    `json:"time"`
	Event    string   `json:"event"`
	Topic    string   `json:"topic"`
	Message  string   `json:"message,omitempty"`
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Relay is an in-process fake of an ntfy server supporting
// GET /{topic}/json?poll=1, POST /{topic} and GET /{topic}/ws.
type Relay struct {
	*httptest.Server

	mu          sync.RWMutex
	topics      map[string][]string // raw JSON lines
	status      map[string]int
	subscribers map[string]map[*websocket.Conn]bool
	headers     []http.Header
	seq         atomic.Int64
}

// NewRelay starts a fake relay. Call Close when done.
func NewRelay() *Relay {
	r := &Relay{
		topics:      map[string][]string{},
		status:      map[string]int{},
		subscribers: map[string]map[*websocket.Conn]bool{},
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.handle))
	return r
}

// Seed stores messages on topic as if they had been published.
func (r *Relay) Seed(topic string, messages ...string) {
	for _, m := range messages {
		r.store(topic, m, "", nil, 0)
	}
}

// SeedRaw appends raw lines (possibly invalid JSON) to topic.
func (r *Relay) SeedRaw(topic string, lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = append(r.topics[topic], lines...)
}

// FailWith makes every request for topic answer with status.
func (r *Relay) FailWith(topic string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[topic] = status
}

// Messages returns the decoded messages stored on topic.
func (r *Relay) Messages(topic string) []RelayMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []RelayMessage
	for _, line := range r.topics[topic] {
		var m RelayMessage
		if json.Unmarshal([]byte(line), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// Headers returns the headers of every POST received.
func (r *Relay) Headers() []http.Header {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]http.Header(nil), r.headers...)
}

// WaitForSubscribers blocks until topic has n websocket subscribers or the
// timeout passes.
func (r *Relay) WaitForSubscribers(topic string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.RLock()
		got := len(r.subscribers[topic])
		r.mu.RUnlock()
		if got >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (r *Relay) handle(w http.ResponseWriter, req *http.Request) {
	path := strings.Trim(req.URL.Path, "/")
	topic, suffix, _ := strings.Cut(path, "/")

	r.mu.RLock()
	forced := r.status[topic]
	r.mu.RUnlock()
	if forced != 0 {
		http.Error(w, http.StatusText(forced), forced)
		return
	}

	switch {
	case req.Method == http.MethodPost && suffix == "":
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()

		var tags []string
		if t := req.Header.Get("Tags"); t != "" {
			tags = strings.Split(t, ",")
		}
		prio := 0
		_, _ = fmt.Sscanf(req.Header.Get("Priority"), "%d", &prio)

		line := r.store(topic, string(body), req.Header.Get("Title"), tags, prio)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, line)
	case req.Method == http.MethodGet && suffix == "json":
		r.mu.RLock()
		lines := append([]string(nil), r.topics[topic]...)
		r.mu.RUnlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n")
		}
	case req.Method == http.MethodGet && suffix == "ws":
		r.handleWS(w, req, topic)
	default:
		http.NotFound(w, req)
	}
}

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	open, _ := json.Marshal(RelayMessage{ID: r.nextID(), Time: time.Now().Unix(), Event: "open", Topic: topic})
	_ = conn.WriteMessage(websocket.TextMessage, open)

	r.mu.Lock()
	if r.subscribers[topic] == nil {
		r.subscribers[topic] = map[*websocket.Conn]bool{}
	}
	r.subscribers[topic][conn] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.subscribers[topic], conn)
		r.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) store(topic, body, title string, tags []string, prio int) string {
	m := RelayMessage{
		ID:       r.nextID(),
		Time:     time.Now().Unix(),
		Event:    "message",
		Topic:    topic,
		Message:  body,
		Title:    title,
		Tags:     tags,
		Priority: prio,
	}
	data, _ := json.Marshal(m)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = append(r.topics[topic], string(data))
	for conn := range r.subscribers[topic] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	return string(data)
}

func (r *Relay) nextID() string {
	return fmt.Sprintf("msg%04d", r.seq.Add(1))
}
