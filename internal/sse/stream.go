package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Event names are a wire contract; clients switch on them by string.
const (
	EventResponseMetadata      = "ResponseMetadata"
	EventChatTitleUpdate       = "ChatTitleUpdate"
	EventAttachmentUpdate      = "AttachmentUpdate"
	EventStart                 = "Start"
	EventResponseUpdate        = "ResponseUpdate"
	EventReasoning             = "Reasoning"
	EventCitationsUpdate       = "CitationsUpdate"
	EventImageCitationUpdate   = "ImageCitationUpdate"
	EventDeepResearchReasoning = "DeepResearchReasoning"
	EventError                 = "Error"
	EventEnd                   = "End"
)

var ErrStreamClosed = errors.New("sse: stream closed")

// Stream writes server-sent events to one HTTP response. Writes are
// serialized and each event is flushed immediately. After End or Close no
// further events go out; late sends return ErrStreamClosed.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, nil
}

// Send emits one named event. Payload is JSON-encoded; a nil payload sends
// an empty object.
func (s *Stream) Send(event string, payload any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s payload: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

// End emits the End event and closes the stream.
func (s *Stream) End() error {
	err := s.Send(EventEnd, nil)
	s.Close()
	return err
}

// Close marks the stream closed without emitting anything.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ErrorPayload is the JSON body of an Error event.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// SendError emits an Error event with the given code and user message.
func (s *Stream) SendError(code, message string) error {
	return s.Send(EventError, ErrorPayload{Error: code, Message: message})
}
