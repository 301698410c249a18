package steps

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/search"
)

const (
	temporalMaxIterations     = 10
	temporalBoundedIterations = 2
	temporalWindowStepDays    = 12
	temporalPageLimit         = 15
)

// temporalWindow returns the search window for iteration i: the span grows
// linearly as (2+i) twelve-day steps away from the anchor, in the direction
// the user asked about.
func temporalWindow(direction types.TemporalDirection, anchor int64, i int) search.TimestampRange {
	span := int64(2+i) * temporalWindowStepDays * 24 * int64(time.Hour/time.Millisecond)
	var from, to int64
	if direction == types.TemporalNext {
		from, to = anchor, anchor+span
	} else {
		from, to = anchor-span, anchor
	}
	return search.TimestampRange{From: &from, To: &to}
}

// runTemporalStrategy answers questions about past or upcoming meetings by
// widening a time window around now and searching calendar and mail in
// parallel each round.
func runTemporalStrategy(ctx context.Context, d Deps, in StrategyInput, emit EmitFunc) (StrategyResult, error) {
	span := in.Span.Child("temporalExpansion")
	defer span.End()

	f := in.Classification.Filters
	anchor := in.User.NowMillis
	if anchor <= 0 {
		anchor = time.Now().UnixMilli()
	}

	bounded := classificationTimeRange(f)
	maxIter := temporalMaxIterations
	if bounded.From != nil && bounded.To != nil {
		maxIter = temporalBoundedIterations
	}
	span.Set("direction", string(in.Classification.TemporalDirection)).Set("maxIterations", maxIter)

	baseIndex := in.BaseIndex
	var searched search.TimestampRange
	for i := 0; i < maxIter; i++ {
		window := temporalWindow(in.Classification.TemporalDirection, anchor, i)
		if bounded.From != nil && bounded.To != nil {
			window = bounded
		}
		searched = widenRange(searched, window)

		iterSpan := span.Child("iteration").Set("page", i).Set("windowFrom", deref(window.From)).Set("windowTo", deref(window.To))

		var calHits, mailHits []search.Hit
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			calHits, err = d.Search.Search(gctx, in.Query, in.User.Email, []string{search.AppCalendar}, nil, search.Options{
				Limit:     temporalPageLimit,
				Alpha:     in.Alpha,
				Timestamp: window,
			})
			return err
		})
		g.Go(func() error {
			var err error
			mailHits, err = d.Search.Search(gctx, in.Query, in.User.Email, []string{search.AppGmail}, nil, search.Options{
				Limit:           temporalPageLimit,
				Alpha:           in.Alpha,
				Timestamp:       window,
				NotInMailLabels: promoMailLabels,
			})
			return err
		})
		if err := g.Wait(); err != nil {
			iterSpan.End()
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: baseIndex}, err
		}

		hits := filterSchemas(mergeHits(calHits, mailHits), search.SchemaMail, search.SchemaEvent)
		observability.Current().ObserveRetrieval("temporalExpansion", len(hits))
		iterSpan.Set("hits", len(hits)).Set("docIds", hitIDs(hits))

		if len(hits) == 0 {
			iterSpan.End()
			continue
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
			System:    meetingAnswerPrompt(in.User, in.Reasoning),
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

	summary := searchedRangeSummary(in.Classification.TemporalDirection, searched, in.User.Timezone)
	if err := emit(Event{Text: summary}); err != nil {
		return StrategyResult{Outcome: outcomeForStreamErr(err), NextBaseIndex: baseIndex}, err
	}
	return StrategyResult{
		Outcome:       OutcomeNoDocs,
		Gen:           generateResult{Text: summary},
		NextBaseIndex: baseIndex,
	}, nil
}

func widenRange(acc, window search.TimestampRange) search.TimestampRange {
	if window.From != nil && (acc.From == nil || *window.From < *acc.From) {
		acc.From = window.From
	}
	if window.To != nil && (acc.To == nil || *window.To > *acc.To) {
		acc.To = window.To
	}
	return acc
}

func searchedRangeSummary(direction types.TemporalDirection, r search.TimestampRange, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	format := func(ms *int64) string {
		if ms == nil {
			return "now"
		}
		return time.UnixMilli(*ms).In(loc).Format("January 2, 2006")
	}
	what := "meetings or related email"
	if direction == types.TemporalNext {
		return fmt.Sprintf("I searched your calendar and email between %s and %s and found no upcoming %s matching your question.", format(r.From), format(r.To), what)
	}
	return fmt.Sprintf("I searched your calendar and email between %s and %s and found no %s matching your question.", format(r.From), format(r.To), what)
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
