package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/search"
)

const (
	iterativeMaxPages     = 4
	iterativePageSize     = 10
	iterativeLatestCount  = 5
	iterativeRewriteCount = 3
	iterativeLookbackMonths = 4
)

// runIterativeStrategy is the default retrieval loop: paginate a hybrid
// search over a four-month lookback, anchor page 0 with the newest
// documents, and midway through try LLM query rewrites before giving up.
func runIterativeStrategy(ctx context.Context, d Deps, in StrategyInput, emit EmitFunc) (StrategyResult, error) {
	span := in.Span.Child("iterativeRag")
	defer span.End()

	f := in.Classification.Filters
	window := classificationTimeRange(f)
	if window.Empty() {
		now := in.User.NowMillis
		if now <= 0 {
			now = time.Now().UnixMilli()
		}
		from := time.UnixMilli(now).AddDate(0, -iterativeLookbackMonths, 0).UnixMilli()
		window = search.TimestampRange{From: &from, To: &now}
	}

	apps := normalizeApps(f.Apps)
	participants := searchParticipants(f.MailParticipants)

	// The newest documents anchor page 0 and are excluded from its search
	// so pagination stays diverse.
	latest, err := d.Search.Search(ctx, in.Query, in.User.Email, apps, f.Entities, search.Options{
		Limit:        iterativeLatestCount,
		Alpha:        in.Alpha,
		RankProfile:  search.RankGlobalSorted,
		Timestamp:    window,
		Participants: participants,
	})
	if err != nil {
		d.Log.Warn("latest-results fetch failed", "error", err)
		latest = nil
	}
	span.Set("latest", len(latest))

	var firstPage []search.Hit
	baseIndex := in.BaseIndex

	runPage := func(hits []search.Hit, pageSpan *Span) (StrategyResult, bool, error) {
		hits, err := search.ExpandEmailThreads(ctx, d.Search, in.User.Email, hits)
		if err != nil {
			d.Log.Warn("thread expansion failed", "error", err)
		}
		built, err := buildContext(ctx, d.Search, ContextBuildInput{
			Hits:       hits,
			StartIndex: baseIndex,
			UserQuery:  in.Query,
			KbMode:     in.KbMode,
			User:       in.User,
		})
		if err != nil {
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: baseIndex}, false, err
		}
		gen, err := streamAnswer(ctx, d.LLM, d.Search, generateInput{
			System:    answerSystemPrompt(in.User, in.Reasoning, in.KbMode),
			Query:     in.Query,
			Context:   built,
			Results:   hits,
			BaseIndex: baseIndex,
			KbMode:    in.KbMode,
			Reasoning: in.Reasoning,
			User:      in.User,
		}, emit)
		if in.Reasoning {
			baseIndex += len(hits)
		}
		pageSpan.Set("answered", gen.Answered)
		if err != nil {
			return StrategyResult{Outcome: outcomeForStreamErr(err), Gen: gen, NextBaseIndex: baseIndex}, false, err
		}
		if gen.Answered {
			return StrategyResult{Outcome: OutcomeAnswered, Gen: gen, NextBaseIndex: baseIndex}, true, nil
		}
		return StrategyResult{}, false, nil
	}

	for page := 0; page < iterativeMaxPages; page++ {
		pageSpan := span.Child("iteration").Set("page", page)

		if page == iterativeMaxPages/2 {
			res, done, err := tryRewrites(ctx, d, in, firstPage, latest, window, &baseIndex, pageSpan, emit)
			if err != nil || done {
				pageSpan.End()
				return res, err
			}
		}

		opts := search.Options{
			Limit:        iterativePageSize * (page + 1),
			Offset:       iterativePageSize * page,
			Alpha:        in.Alpha,
			Timestamp:    window,
			Participants: participants,
		}
		if page == 0 {
			opts.ExcludedIDs = hitIDs(latest)
		}
		hits, err := d.Search.Search(ctx, in.Query, in.User.Email, apps, f.Entities, opts)
		if err != nil {
			pageSpan.End()
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: baseIndex}, err
		}
		observability.Current().ObserveRetrieval("iterativeRag", len(hits))

		if page == 0 {
			hits = mergeHits(latest, hits)
			firstPage = hits
		}
		pageSpan.Set("hits", len(hits)).Set("docIds", hitIDs(hits))
		if len(hits) == 0 {
			pageSpan.End()
			continue
		}

		res, done, err := runPage(hits, pageSpan)
		pageSpan.End()
		if err != nil || done {
			return res, err
		}
	}

	return StrategyResult{Outcome: OutcomeNoDocs, NextBaseIndex: baseIndex}, nil
}

// tryRewrites asks the model for alternative phrasings of a query that has
// not produced an answer, and runs each against the same window.
func tryRewrites(ctx context.Context, d Deps, in StrategyInput, firstPage, latest []search.Hit, window search.TimestampRange, baseIndex *int, span *Span, emit EmitFunc) (StrategyResult, bool, error) {
	queries := rewriteQueries(ctx, d, in, firstPage)
	if len(queries) == 0 {
		return StrategyResult{}, false, nil
	}
	span.Set("rewrites", queries)

	f := in.Classification.Filters
	for _, q := range queries {
		hits, err := d.Search.Search(ctx, q, in.User.Email, normalizeApps(f.Apps), f.Entities, search.Options{
			Limit:        iterativePageSize,
			Alpha:        in.Alpha,
			Timestamp:    window,
			ExcludedIDs:  hitIDs(latest),
			Participants: searchParticipants(f.MailParticipants),
		})
		if err != nil {
			continue
		}
		hits = mergeHits(latest, hits)
		if len(hits) == 0 {
			continue
		}
		hits, err = search.ExpandEmailThreads(ctx, d.Search, in.User.Email, hits)
		if err != nil {
			d.Log.Warn("thread expansion failed", "error", err)
		}

		built, err := buildContext(ctx, d.Search, ContextBuildInput{
			Hits:       hits,
			StartIndex: *baseIndex,
			UserQuery:  in.Query,
			KbMode:     in.KbMode,
			User:       in.User,
		})
		if err != nil {
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: *baseIndex}, true, err
		}
		gen, err := streamAnswer(ctx, d.LLM, d.Search, generateInput{
			System:    answerSystemPrompt(in.User, in.Reasoning, in.KbMode),
			Query:     in.Query,
			Context:   built,
			Results:   hits,
			BaseIndex: *baseIndex,
			KbMode:    in.KbMode,
			Reasoning: in.Reasoning,
			User:      in.User,
		}, emit)
		if in.Reasoning {
			*baseIndex += len(hits)
		}
		if err != nil {
			return StrategyResult{Outcome: outcomeForStreamErr(err), Gen: gen, NextBaseIndex: *baseIndex}, true, err
		}
		if gen.Answered {
			return StrategyResult{Outcome: OutcomeAnswered, Gen: gen, NextBaseIndex: *baseIndex}, true, nil
		}
	}
	return StrategyResult{}, false, nil
}

func rewriteQueries(ctx context.Context, d Deps, in StrategyInput, firstPage []search.Hit) []string {
	var sample string
	if len(firstPage) > 0 {
		built, err := buildContext(ctx, d.Search, ContextBuildInput{
			Hits:        firstPage,
			ChunkBudget: MetadataChunkBudget,
			UserQuery:   in.Query,
			User:        in.User,
		})
		if err == nil {
			sample = built.Text
		}
	}
	user := fmt.Sprintf("Question: %s", in.Query)
	if sample != "" {
		user = fmt.Sprintf("Question: %s\n\nContext that failed to answer it:\n%s", in.Query, sample)
	}

	raw, err := d.LLM.GenerateJSON(ctx, rewriteSystemPrompt(iterativeRewriteCount), user, "query_rewrites", rewriteSchema(iterativeRewriteCount))
	if err != nil {
		return nil
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out.Queries
}
