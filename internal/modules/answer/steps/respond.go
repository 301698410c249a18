package steps

import (
	"context"
	"encoding/json"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
)

// ModelSettings is the parsed selectedModelConfig for one request.
type ModelSettings struct {
	Model        string
	Reasoning    bool
	WebSearch    bool
	DeepResearch bool
	Agentic      bool
}

// RespondInput is one answer request after session plumbing: the user
// message is already persisted and the SSE stream is open.
type RespondInput struct {
	Query    string
	Messages []types.Message
	User     UserContext
	Scope    ScopedInput
	Model    ModelSettings
	Alpha    float64
	Span     *Span
}

// RespondOutput is everything the session layer persists after the stream.
type RespondOutput struct {
	Outcome        AnswerOutcome
	Text           string
	Thinking       string
	Sources        []types.Citation
	ImageCitations []types.ImageCitation
	Classification *types.Classification
	Usage          openai.Usage
}

// Respond routes one user turn through classification, strategy selection
// and streaming generation. Start has already been emitted by the caller;
// Respond emits text, reasoning and citation events and returns the final
// state for persistence.
func Respond(ctx context.Context, d Deps, in RespondInput, emit EmitFunc) (RespondOutput, error) {
	strategyIn := StrategyInput{
		Query:     in.Query,
		User:      in.User,
		Alpha:     in.Alpha,
		Reasoning: in.Model.Reasoning || in.Model.DeepResearch,
		Span:      in.Span,
	}

	// Explicitly referenced material short-circuits classification.
	if !in.Scope.Empty() {
		res, err := runScopedStrategy(ctx, d, strategyIn, in.Scope, emit)
		return finishRespond(in, res, nil, err)
	}

	routerSpan := in.Span.Child("router")
	c, err := classifyQuery(ctx, d.LLM, RouteInput{Query: in.Query, Messages: in.Messages, User: in.User})
	if err != nil {
		routerSpan.Set("error", err.Error()).End()
		return RespondOutput{Outcome: OutcomeLocalError}, err
	}
	routerSpan.Set("classification", c).End()
	strategyIn.Classification = c

	if c.HasDirectAnswer() {
		if err := emit(Event{Text: c.Answer}); err != nil {
			return RespondOutput{Outcome: outcomeForStreamErr(err), Classification: &c}, err
		}
		in.Span.Set("directAnswer", true)
		return RespondOutput{Outcome: OutcomeAnswered, Text: c.Answer, Classification: &c}, nil
	}

	strategyIn.Query = c.EffectiveQuery(in.Query)

	// A follow-up inherits the previous turn's referenced files when the
	// new turn brings none of its own.
	if c.IsFollowUp {
		if scope := previousScope(in.Messages); !scope.Empty() {
			res, err := runScopedStrategy(ctx, d, strategyIn, scope, emit)
			return finishRespond(in, res, &c, err)
		}
	}

	if invalid := invalidTimeRange(c.Filters); invalid {
		in.Span.Set("invalidTimeRange", true)
		c.Filters.StartTime = ""
		c.Filters.EndTime = ""
		strategyIn.Classification = c
	}

	var res StrategyResult
	switch {
	case c.TemporalDirection != types.TemporalNone && (len(c.Filters.Apps) == 0 || includesCalendar(c.Filters.Apps)):
		res, err = runTemporalStrategy(ctx, d, strategyIn, emit)
	case c.Type == types.QueryTypeGetItems && len(appsToSchemas(c.Filters.Apps)) > 0:
		res, err = runGetItemsStrategy(ctx, d, strategyIn, emit)
	case c.Type == types.QueryTypeSearchWithFilters && c.FilterQuery != "":
		res, err = runFilteredSearchStrategy(ctx, d, strategyIn, emit)
	default:
		res, err = runIterativeStrategy(ctx, d, strategyIn, emit)
	}
	return finishRespond(in, res, &c, err)
}

// finishRespond rewrites internal citation indices to display positions and
// packages the persistable state.
func finishRespond(in RespondInput, res StrategyResult, c *types.Classification, err error) (RespondOutput, error) {
	out := RespondOutput{
		Outcome:        res.Outcome,
		Thinking:       res.Gen.Reasoning,
		Sources:        orderedCitations(res.Gen.Sources),
		ImageCitations: res.Gen.ImageCitations,
		Classification: c,
		Usage:          res.Gen.Usage,
	}
	observability.Current().ObserveAnswerRun(routeName(c), res.Outcome.String())

	text := res.Gen.Text
	if text != "" {
		text = processMessage(text, citationMap(res.Gen.Sources))
		if in.Model.WebSearch {
			text = groupLineCitations(text)
		}
	}
	out.Text = text
	in.Span.Set("outcome", res.Outcome.String()).Set("answerLen", len(text))
	return out, err
}

func routeName(c *types.Classification) string {
	if c == nil {
		return "scoped"
	}
	if c.HasDirectAnswer() {
		return "direct"
	}
	if c.TemporalDirection != types.TemporalNone {
		return "temporal"
	}
	return string(c.Type)
}

// previousScope pulls the nearest prior user turn's file and thread ids.
func previousScope(messages []types.Message) ScopedInput {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != types.MessageRoleUser {
			continue
		}
		return ScopedInput{
			FileIDs:   decodeStringList(m.FileIDs),
			ThreadIDs: decodeStringList(m.ThreadIDs),
		}
	}
	return ScopedInput{}
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func invalidTimeRange(f types.ClassificationFilters) bool {
	from, okFrom := parseRFC3339Millis(f.StartTime)
	to, okTo := parseRFC3339Millis(f.EndTime)
	return okFrom && okTo && from > to
}
