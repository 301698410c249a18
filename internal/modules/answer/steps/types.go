package steps

import (
	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
)

// Event is one unit pushed from the generation pipeline to the transport.
// Exactly one field group is set per event.
type Event struct {
	Text      string
	Reasoning string

	Citation      *types.Citation
	CitationIndex int

	ImageCitation *types.ImageCitation

	DeepStep map[string]any

	Usage *openai.Usage
}

// EmitFunc receives pipeline events. Returning an error aborts generation;
// transports return sse.ErrStreamClosed when the client is gone.
type EmitFunc func(Event) error

// AnswerOutcome tells the orchestrator how a strategy run ended.
type AnswerOutcome int

const (
	OutcomeAnswered AnswerOutcome = iota
	OutcomeNoDocs
	OutcomeFallback
	OutcomeStreamClosed
	OutcomeLocalError
)

func (o AnswerOutcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeNoDocs:
		return "no_docs"
	case OutcomeFallback:
		return "fallback"
	case OutcomeStreamClosed:
		return "stream_closed"
	case OutcomeLocalError:
		return "local_error"
	default:
		return "unknown"
	}
}

// UserContext carries the requesting user's identity and clock for prompts
// and retrieval scoping.
type UserContext struct {
	UserID      string
	Email       string
	WorkspaceID string
	Timezone    string
	NowMillis   int64
}

const (
	// MaxUserRequestCount caps "give me N items" requests.
	MaxUserRequestCount = 50

	// DefaultChunkBudget is the global excerpt budget across all docs in
	// one assembled context.
	DefaultChunkBudget = 120

	// MetadataChunkBudget is the tighter budget used for GetItems
	// answers.
	MetadataChunkBudget = 20
)
