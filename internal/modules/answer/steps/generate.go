package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
)

// generateInput is one streamed generation attempt over a built context.
type generateInput struct {
	System     string
	Query      string
	Context    BuiltContext
	Results    []search.Hit
	BaseIndex  int
	KbMode     bool
	Reasoning  bool
	User       UserContext
}

// citedSource is one source the model actually cited, in first-citation
// order.
type citedSource struct {
	Index    int
	Citation types.Citation
}

// generateResult is the outcome of one attempt. Answered=false with nil
// error means the model returned a null answer for this context.
type generateResult struct {
	Answered       bool
	Text           string
	Reasoning      string
	Sources        []citedSource
	ImageCitations []types.ImageCitation
	Usage          openai.Usage
}

// streamAnswer runs one generation over the given context, forwarding text,
// reasoning and citations to emit as they appear. The raw internal citation
// indices are kept in Text; the orchestrator rewrites them after the stream
// ends.
func streamAnswer(ctx context.Context, llm openai.Client, sc search.Client, in generateInput, emit EmitFunc) (generateResult, error) {
	var res generateResult

	user := in.Query
	if in.Context.Text != "" {
		user = fmt.Sprintf("%s\n\nContext:\n%s", in.Query, in.Context.Text)
	}

	scanner := newCitationScanner(sc, in.Results, in.BaseIndex, in.KbMode, in.User.Email, in.Context.ImagePaths)
	recordingEmit := func(ev Event) error {
		if ev.Citation != nil {
			res.Sources = append(res.Sources, citedSource{Index: ev.CitationIndex, Citation: *ev.Citation})
		}
		if ev.ImageCitation != nil {
			res.ImageCitations = append(res.ImageCitations, *ev.ImageCitation)
		}
		return emit(ev)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		parser    answerParser
		prose     strings.Builder
		reasoning strings.Builder
		emitErr   error
		gotNull   bool
	)
	fail := func(err error) {
		if emitErr == nil {
			emitErr = err
		}
		cancel()
	}

	onDelta := func(delta string) {
		mu.Lock()
		defer mu.Unlock()
		if emitErr != nil || gotNull {
			return
		}
		text, thought, isNull := parser.Push(delta)
		if thought != "" {
			reasoning.WriteString(thought)
			if err := recordingEmit(Event{Reasoning: thought}); err != nil {
				fail(err)
				return
			}
		}
		if isNull {
			gotNull = true
			cancel()
			return
		}
		if text == "" {
			return
		}
		prose.WriteString(text)
		if err := recordingEmit(Event{Text: text}); err != nil {
			fail(err)
			return
		}
		if err := scanner.Scan(ctx, prose.String(), recordingEmit); err != nil {
			fail(err)
		}
	}
	onReasoning := func(delta string) {
		mu.Lock()
		defer mu.Unlock()
		if emitErr != nil {
			return
		}
		reasoning.WriteString(delta)
		if err := recordingEmit(Event{Reasoning: delta}); err != nil {
			fail(err)
		}
	}

	sr, err := llm.StreamText(streamCtx, in.System, user, onDelta, onReasoning)

	mu.Lock()
	defer mu.Unlock()
	res.Usage = sr.Usage
	res.Reasoning = reasoning.String()
	// Partial prose is kept so a prematurely closed stream still persists
	// what was generated.
	res.Text = prose.String()

	if emitErr != nil {
		return res, emitErr
	}
	if gotNull {
		return res, nil
	}
	if err != nil {
		// Cancellation we triggered ourselves is not a caller error.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return res, nil
		}
		return res, err
	}

	if final, ok := parser.Final(); ok && strings.TrimSpace(final) != "" {
		// Flush any tail the incremental parse held back.
		if len(final) > prose.Len() {
			tail := final[prose.Len():]
			prose.WriteString(tail)
			if err := recordingEmit(Event{Text: tail}); err != nil {
				return res, err
			}
			if err := scanner.Scan(ctx, prose.String(), recordingEmit); err != nil {
				return res, err
			}
		}
		res.Answered = true
		res.Text = final
	}
	return res, nil
}

// citationMap assigns 1-based display positions to internal indices in
// first-citation order.
func citationMap(sources []citedSource) map[int]int {
	m := make(map[int]int, len(sources))
	for i, s := range sources {
		if _, ok := m[s.Index]; !ok {
			m[s.Index] = i + 1
		}
	}
	return m
}

// orderedCitations returns the cited sources as the persisted sources list,
// display order.
func orderedCitations(sources []citedSource) []types.Citation {
	out := make([]types.Citation, 0, len(sources))
	seen := map[int]bool{}
	for _, s := range sources {
		if seen[s.Index] {
			continue
		}
		seen[s.Index] = true
		out = append(out, s.Citation)
	}
	return out
}
