package steps

import (
	"context"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/search"
)

const (
	filteredMaxIterations = 5
	filteredPageSize      = 10
)

// runFilteredSearchStrategy serves content queries with explicit app, time
// or sort constraints. Each round widens the page; a null answer on the
// final round falls back to the iterative strategy.
func runFilteredSearchStrategy(ctx context.Context, d Deps, in StrategyInput, emit EmitFunc) (StrategyResult, error) {
	span := in.Span.Child("searchWithFilters")
	defer span.End()

	f := in.Classification.Filters
	query := in.Classification.FilterQuery
	if query == "" {
		query = in.Query
	}

	rank := search.RankNativeRank
	if f.SortDirection == types.SortDesc {
		rank = search.RankGlobalSorted
	}

	participants := f.MailParticipants
	if mailOnly(f.Apps) && !participants.Empty() {
		participants = resolveParticipants(ctx, d.Search, d.LLM, in.User, participants)
	}

	baseIndex := in.BaseIndex
	for i := 0; i < filteredMaxIterations; i++ {
		iterSpan := span.Child("iteration").Set("page", i)

		hits, err := d.Search.Search(ctx, query, in.User.Email, normalizeApps(f.Apps), f.Entities, search.Options{
			Limit:        filteredPageSize * (i + 1),
			Offset:       filteredPageSize * i,
			Alpha:        in.Alpha,
			RankProfile:  rank,
			Timestamp:    classificationTimeRange(f),
			Participants: searchParticipants(participants),
		})
		if err != nil {
			iterSpan.End()
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: baseIndex}, err
		}
		observability.Current().ObserveRetrieval("searchWithFilters", len(hits))
		iterSpan.Set("hits", len(hits)).Set("docIds", hitIDs(hits))

		if len(hits) == 0 {
			iterSpan.End()
			continue
		}

		hits, err = search.ExpandEmailThreads(ctx, d.Search, in.User.Email, hits)
		if err != nil {
			d.Log.Warn("thread expansion failed", "error", err)
		}

		built, err := buildContext(ctx, d.Search, ContextBuildInput{
			Hits:       hits,
			StartIndex: baseIndex,
			UserQuery:  in.Query,
			User:       in.User,
		})
		if err != nil {
			iterSpan.End()
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: baseIndex}, err
		}

		gen, err := streamAnswer(ctx, d.LLM, d.Search, generateInput{
			System:    answerSystemPrompt(in.User, in.Reasoning, false),
			Query:     in.Query,
			Context:   built,
			Results:   hits,
			BaseIndex: baseIndex,
			Reasoning: in.Reasoning,
			User:      in.User,
		}, emit)
		if in.Reasoning {
			baseIndex += len(hits)
		}
		iterSpan.Set("answered", gen.Answered).End()
		if err != nil {
			return StrategyResult{Outcome: outcomeForStreamErr(err), Gen: gen, NextBaseIndex: baseIndex}, err
		}
		if gen.Answered {
			return StrategyResult{Outcome: OutcomeAnswered, Gen: gen, NextBaseIndex: baseIndex}, nil
		}
	}

	span.Set("fallback", "iterative")
	fallbackIn := in
	fallbackIn.BaseIndex = baseIndex
	res, err := runIterativeStrategy(ctx, d, fallbackIn, emit)
	if err == nil && res.Outcome == OutcomeAnswered {
		res.Outcome = OutcomeFallback
	}
	return res, err
}
