package steps

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/seekwell/seekwell-backend/internal/search"
)

// Span is one node of the per-message trace tree: router decision, strategy
// iterations, search counts, context sizes, costs. All methods are nil-safe
// so call sites never guard.
type Span struct {
	Name      string         `json:"name"`
	StartedAt int64          `json:"startedAt"`
	EndedAt   int64          `json:"endedAt,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	Children  []*Span        `json:"children,omitempty"`

	mu sync.Mutex
}

func newSpan(name string) *Span {
	return &Span{Name: name, StartedAt: time.Now().UnixMilli()}
}

// NewTrace opens the root span of a per-message trace tree.
func NewTrace(name string) *Span { return newSpan(name) }

// Child opens a nested span.
func (s *Span) Child(name string) *Span {
	if s == nil {
		return nil
	}
	c := newSpan(name)
	s.mu.Lock()
	s.Children = append(s.Children, c)
	s.mu.Unlock()
	return c
}

func (s *Span) Set(key string, value any) *Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.Attrs == nil {
		s.Attrs = map[string]any{}
	}
	s.Attrs[key] = value
	s.mu.Unlock()
	return s
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.EndedAt = time.Now().UnixMilli()
	s.mu.Unlock()
}

// JSON renders the finished tree for the chat_traces row.
func (s *Span) JSON() []byte {
	if s == nil {
		return []byte("{}")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(s)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// hitIDs summarizes a result set for trace attrs.
func hitIDs(hits []search.Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.DocID())
	}
	return ids
}
