package sse

import (
	"context"
	"sync"
)

// ActiveStream is one in-flight answer generation bound to a chat.
type ActiveStream struct {
	ChatID string
	Cancel context.CancelFunc
}

// StreamRegistry tracks in-flight streams by chat id so a stop request can
// cancel the generation from another request. One chat has at most one
// active stream; registering over an existing entry cancels the old one.
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]*ActiveStream
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: map[string]*ActiveStream{}}
}

// Register records the stream and returns a handle for Unregister. Any
// previous stream for the same chat is canceled.
func (r *StreamRegistry) Register(chatID string, cancel context.CancelFunc) *ActiveStream {
	entry := &ActiveStream{ChatID: chatID, Cancel: cancel}
	r.mu.Lock()
	prev := r.streams[chatID]
	r.streams[chatID] = entry
	r.mu.Unlock()
	if prev != nil && prev.Cancel != nil {
		prev.Cancel()
	}
	return entry
}

// Unregister removes the entry, but only if it is still the live
// registration for that chat. A stream replaced by a newer Register call
// must not remove its successor.
func (r *StreamRegistry) Unregister(entry *ActiveStream) {
	if entry == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.streams[entry.ChatID]; ok && cur == entry {
		delete(r.streams, entry.ChatID)
	}
}

// Stop cancels the active stream for a chat. Returns false when there is
// nothing to stop; callers treat that as a no-op.
func (r *StreamRegistry) Stop(chatID string) bool {
	r.mu.Lock()
	cur, ok := r.streams[chatID]
	if ok {
		delete(r.streams, chatID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if cur.Cancel != nil {
		cur.Cancel()
	}
	return true
}

func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
