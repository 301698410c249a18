package services

import (
	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/modules/answer"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

// streamEmitter adapts answer pipeline events to the SSE wire contract.
// Each citation event re-sends the full running source list plus the map
// from internal marker indices to display positions.
type streamEmitter struct {
	stream      *sse.Stream
	chunks      []types.Citation
	citationMap map[int]int
}

func newStreamEmitter(stream *sse.Stream) *streamEmitter {
	return &streamEmitter{stream: stream, citationMap: map[int]int{}}
}

func (e *streamEmitter) emit(ev answer.Event) error {
	switch {
	case ev.Text != "":
		return e.stream.Send(sse.EventResponseUpdate, ev.Text)
	case ev.Reasoning != "":
		return e.stream.Send(sse.EventReasoning, ev.Reasoning)
	case ev.Citation != nil:
		if _, ok := e.citationMap[ev.CitationIndex]; !ok {
			e.chunks = append(e.chunks, *ev.Citation)
			e.citationMap[ev.CitationIndex] = len(e.chunks)
		}
		return e.stream.Send(sse.EventCitationsUpdate, map[string]any{
			"contextChunks": e.chunks,
			"citationMap":   e.citationMap,
		})
	case ev.ImageCitation != nil:
		return e.stream.Send(sse.EventImageCitationUpdate, ev.ImageCitation)
	case ev.DeepStep != nil:
		return e.stream.Send(sse.EventDeepResearchReasoning, ev.DeepStep)
	}
	return nil
}
