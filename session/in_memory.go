package session

import (
	"container/list"
	"sync"

	"github.com/hupe1980/agentstarter/agent"
	"github.com/hupe1980/agentstarter/core"
)

// DefaultCapacity is the number of runs and sessions kept by default.
const DefaultCapacity = 100

// InMemoryStore holds the most recent run results and conversation sessions
// in bounded LRU order. It is safe for concurrent access.
type InMemoryStore struct {
	mu       sync.Mutex
	capacity int

	runs     map[string]*list.Element
	runOrder *list.List

	sessions     map[string]*list.Element
	sessionOrder *list.List
}

type runEntry struct {
	id     string
	result *agent.Result
}

type sessionEntry struct {
	id      string
	session *core.Session
}

// NewInMemoryStore creates a store keeping up to capacity runs and as many
// sessions. capacity <= 0 uses DefaultCapacity.
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryStore{
		capacity:     capacity,
		runs:         make(map[string]*list.Element),
		runOrder:     list.New(),
		sessions:     make(map[string]*list.Element),
		sessionOrder: list.New(),
	}
}

// Capacity returns the configured bound.
func (s *InMemoryStore) Capacity() int { return s.capacity }

// SaveRun records res, evicting the oldest run when full.
func (s *InMemoryStore) SaveRun(res *agent.Result) {
	if res == nil || res.RunID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.runs[res.RunID]; ok {
		el.Value.(*runEntry).result = res
		s.runOrder.MoveToFront(el)
		return
	}

	s.runs[res.RunID] = s.runOrder.PushFront(&runEntry{id: res.RunID, result: res})
	for s.runOrder.Len() > s.capacity {
		oldest := s.runOrder.Back()
		s.runOrder.Remove(oldest)
		delete(s.runs, oldest.Value.(*runEntry).id)
	}
}

// GetRun returns a stored run.
func (s *InMemoryStore) GetRun(runID string) (*agent.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return el.Value.(*runEntry).result, true
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *InMemoryStore) ListRuns(limit int) []*agent.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*agent.Result, 0, s.runOrder.Len())
	for el := s.runOrder.Front(); el != nil; el = el.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, el.Value.(*runEntry).result)
	}
	return out
}

// Session returns the conversation session with id, creating it for
// agentID when absent. An empty id always creates a new session.
func (s *InMemoryStore) Session(id, agentID string) *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.sessions[id]; ok && id != "" {
		s.sessionOrder.MoveToFront(el)
		return el.Value.(*sessionEntry).session
	}

	if id == "" {
		id = core.NewID()
	}
	sess := core.NewSession(id, agentID)
	s.sessions[id] = s.sessionOrder.PushFront(&sessionEntry{id: id, session: sess})
	for s.sessionOrder.Len() > s.capacity {
		oldest := s.sessionOrder.Back()
		s.sessionOrder.Remove(oldest)
		delete(s.sessions, oldest.Value.(*sessionEntry).id)
	}
	return sess
}

// DeleteSession forgets a session.
func (s *InMemoryStore) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.sessions[id]
	if !ok {
		return false
	}
	s.sessionOrder.Remove(el)
	delete(s.sessions, id)
	return true
}
