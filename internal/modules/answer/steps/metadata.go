package steps

import (
	"context"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/search"
)

// runGetItemsStrategy serves "give me my last N items" requests with an
// exact metadata fetch. No thread expansion: the user asked for exactly
// those items.
func runGetItemsStrategy(ctx context.Context, d Deps, in StrategyInput, emit EmitFunc) (StrategyResult, error) {
	span := in.Span.Child("getItems")
	defer span.End()

	f := in.Classification.Filters
	count := f.Count
	if count <= 0 {
		count = 10
	}
	if count > MaxUserRequestCount {
		count = MaxUserRequestCount
	}
	offset := f.Offset

	participants := f.MailParticipants
	if mailOnly(f.Apps) && !participants.Empty() {
		participants = resolveParticipants(ctx, d.Search, d.LLM, in.User, participants)
	}

	limit := count + offset
	if limit > MaxUserRequestCount {
		limit = MaxUserRequestCount
	}

	q := search.GetItemsQuery{
		Schemas:      appsToSchemas(f.Apps),
		Apps:         normalizeApps(f.Apps),
		Entities:     f.Entities,
		Timestamp:    classificationTimeRange(f),
		Limit:        limit,
		Asc:          f.SortDirection == types.SortAsc,
		Participants: searchParticipants(participants),
	}
	span.Set("schemas", q.Schemas).Set("limit", limit).Set("offset", offset)

	hits, err := d.Search.GetItems(ctx, q, in.User.Email)
	if err != nil {
		return StrategyResult{Outcome: OutcomeLocalError}, err
	}
	observability.Current().ObserveRetrieval("getItems", len(hits))

	if offset < len(hits) {
		hits = hits[offset:]
	} else {
		hits = nil
	}
	if len(hits) > count {
		hits = hits[:count]
	}
	span.Set("hits", len(hits)).Set("docIds", hitIDs(hits))

	if len(hits) == 0 {
		return StrategyResult{Outcome: OutcomeNoDocs, NextBaseIndex: in.BaseIndex}, nil
	}

	built, err := buildContext(ctx, d.Search, ContextBuildInput{
		Hits:        hits,
		ChunkBudget: MetadataChunkBudget,
		StartIndex:  in.BaseIndex,
		UserQuery:   in.Query,
		User:        in.User,
	})
	if err != nil {
		return StrategyResult{Outcome: OutcomeLocalError}, err
	}

	system := itemsAnswerPrompt(in.User, in.Reasoning)
	if mailOnly(f.Apps) {
		system = mailAnswerPrompt(in.User, in.Reasoning)
	}

	gen, err := streamAnswer(ctx, d.LLM, d.Search, generateInput{
		System:    system,
		Query:     in.Query,
		Context:   built,
		Results:   hits,
		BaseIndex: in.BaseIndex,
		Reasoning: in.Reasoning,
		User:      in.User,
	}, emit)
	next := in.BaseIndex + len(hits)
	if err != nil {
		return StrategyResult{Outcome: outcomeForStreamErr(err), Gen: gen, NextBaseIndex: next}, err
	}
	if !gen.Answered {
		return StrategyResult{Outcome: OutcomeNoDocs, Gen: gen, NextBaseIndex: next}, nil
	}
	span.Set("answerLen", len(gen.Text))
	return StrategyResult{Outcome: OutcomeAnswered, Gen: gen, NextBaseIndex: next}, nil
}
