package answer

import (
	"context"

	"github.com/seekwell/seekwell-backend/internal/modules/answer/steps"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
)

type UsecasesDeps struct {
	Log *logger.Logger

	AI     openai.Client
	Search search.Client
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// WithModel rebinds the LLM for one request's model selection.
func (u Usecases) WithModel(model string) Usecases {
	if model != "" {
		u.deps.AI = openai.WithModel(u.deps.AI, model)
	}
	return u
}

type (
	RespondInput  = steps.RespondInput
	RespondOutput = steps.RespondOutput

	Event         = steps.Event
	EmitFunc      = steps.EmitFunc
	AnswerOutcome = steps.AnswerOutcome
	UserContext   = steps.UserContext
	ScopedInput   = steps.ScopedInput
	ModelSettings = steps.ModelSettings
	Span          = steps.Span
)

const (
	OutcomeAnswered     = steps.OutcomeAnswered
	OutcomeNoDocs       = steps.OutcomeNoDocs
	OutcomeFallback     = steps.OutcomeFallback
	OutcomeStreamClosed = steps.OutcomeStreamClosed
	OutcomeLocalError   = steps.OutcomeLocalError
)

func (u Usecases) Respond(ctx context.Context, in RespondInput, emit EmitFunc) (RespondOutput, error) {
	return steps.Respond(ctx, steps.Deps{
		Log:    u.deps.Log,
		LLM:    u.deps.AI,
		Search: u.deps.Search,
	}, in, emit)
}

// NewTrace opens the root span persisted with the assistant message.
func NewTrace(name string) *Span { return steps.NewTrace(name) }

func (u Usecases) SuggestFollowUps(ctx context.Context, question, answer string) ([]string, error) {
	return steps.SuggestFollowUps(ctx, u.deps.AI, question, answer)
}

func (u Usecases) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	return steps.GenerateTitle(ctx, u.deps.AI, firstMessage)
}
