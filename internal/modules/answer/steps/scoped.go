package steps

import (
	"context"

	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/search"
)

const scopedPageLimit = 20

// ScopedInput narrows retrieval to explicitly referenced material: context
// pill file ids, uploaded attachments, selected knowledge-base items, chat
// threads, or a bound agent's selection.
type ScopedInput struct {
	FileIDs []string
	// AttachmentFileIDs are the current turn's uploads; kept apart from
	// FileIDs so attachment-only scope can use its own rank profile.
	AttachmentFileIDs []string
	ThreadIDs         []string
	KbFileIDs         []string
	KbFolderIDs       []string
	Agent             *search.AgentScope
}

func (s ScopedInput) Empty() bool {
	return len(s.FileIDs) == 0 && len(s.AttachmentFileIDs) == 0 && len(s.ThreadIDs) == 0 &&
		len(s.KbFileIDs) == 0 && len(s.KbFolderIDs) == 0 && s.Agent == nil
}

func (s ScopedInput) KbMode() bool {
	return len(s.KbFileIDs) > 0 || len(s.KbFolderIDs) > 0
}

// runScopedStrategy answers strictly from the referenced items.
func runScopedStrategy(ctx context.Context, d Deps, in StrategyInput, scope ScopedInput, emit EmitFunc) (StrategyResult, error) {
	span := in.Span.Child("scopedContext").
		Set("fileIds", scope.FileIDs).
		Set("attachmentFileIds", scope.AttachmentFileIDs).
		Set("threadIds", scope.ThreadIDs).
		Set("kbFileIds", scope.KbFileIDs).
		Set("agentScoped", scope.Agent != nil)
	defer span.End()

	var hits []search.Hit

	if scope.KbMode() {
		kbHits, err := d.Search.SearchKbCollection(ctx, in.Query, scope.KbFileIDs, scope.KbFolderIDs, scopedPageLimit)
		if err != nil {
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: in.BaseIndex}, err
		}
		hits = mergeHits(hits, kbHits)
	}
	fileIDs := append(append([]string{}, scope.FileIDs...), scope.AttachmentFileIDs...)
	if len(fileIDs) > 0 {
		opts := search.Options{Limit: scopedPageLimit, Alpha: in.Alpha}
		if len(scope.FileIDs) == 0 {
			opts.RankProfile = search.RankAttachment
		}
		fileHits, err := d.Search.SearchInFiles(ctx, in.Query, in.User.Email, fileIDs, opts)
		if err != nil {
			return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: in.BaseIndex}, err
		}
		hits = mergeHits(hits, fileHits)
	}
	if len(scope.ThreadIDs) > 0 {
		threadHits, err := d.Search.SearchThreads(ctx, scope.ThreadIDs)
		if err != nil {
			d.Log.Warn("thread fetch failed", "error", err)
		}
		hits = mergeHits(hits, threadHits)
	}
	if scope.Agent != nil {
		agentHits, err := searchAgentScope(ctx, d, in, *scope.Agent)
		if err != nil {
			d.Log.Warn("agent search failed", "error", err)
		}
		hits = mergeHits(hits, agentHits)
	}
	observability.Current().ObserveRetrieval("scopedContext", len(hits))
	span.Set("hits", len(hits)).Set("docIds", hitIDs(hits))

	if len(hits) == 0 {
		return StrategyResult{Outcome: OutcomeNoDocs, NextBaseIndex: in.BaseIndex}, nil
	}

	kbMode := scope.KbMode()
	built, err := buildContext(ctx, d.Search, ContextBuildInput{
		Hits:       hits,
		StartIndex: in.BaseIndex,
		UserQuery:  in.Query,
		KbMode:     kbMode,
		User:       in.User,
	})
	if err != nil {
		return StrategyResult{Outcome: OutcomeLocalError, NextBaseIndex: in.BaseIndex}, err
	}

	gen, err := streamAnswer(ctx, d.LLM, d.Search, generateInput{
		System:    answerSystemPrompt(in.User, in.Reasoning, kbMode),
		Query:     in.Query,
		Context:   built,
		Results:   hits,
		BaseIndex: in.BaseIndex,
		KbMode:    kbMode,
		Reasoning: in.Reasoning,
		User:      in.User,
	}, emit)
	next := in.BaseIndex
	if in.Reasoning {
		next += len(hits)
	}
	if err != nil {
		return StrategyResult{Outcome: outcomeForStreamErr(err), Gen: gen, NextBaseIndex: next}, err
	}
	if !gen.Answered {
		return StrategyResult{Outcome: OutcomeNoDocs, Gen: gen, NextBaseIndex: next}, nil
	}
	return StrategyResult{Outcome: OutcomeAnswered, Gen: gen, NextBaseIndex: next}, nil
}

// searchAgentScope retrieves under an agent's intersect filters. A scope
// naming only channels goes through the cheaper channel search; anything
// broader goes through the agent endpoint. Either way chat-message hits
// pull in their surrounding thread.
func searchAgentScope(ctx context.Context, d Deps, in StrategyInput, scope search.AgentScope) ([]search.Hit, error) {
	var (
		hits []search.Hit
		err  error
	)
	channelsOnly := len(scope.ChannelIDs) > 0 &&
		len(scope.Apps) == 0 && len(scope.DataSourceIDs) == 0 && len(scope.DocIDs) == 0
	if channelsOnly {
		hits, err = d.Search.SearchChannel(ctx, in.Query, in.User.Email, scope.ChannelIDs, scopedPageLimit)
	} else {
		hits, err = d.Search.SearchAgent(ctx, in.Query, in.User.Email, scope, search.Options{
			Limit: scopedPageLimit,
			Alpha: in.Alpha,
		})
	}
	if err != nil {
		return nil, err
	}
	expanded, err := search.ExpandChatThreads(ctx, d.Search, hits)
	if err != nil {
		d.Log.Warn("chat thread expansion failed", "error", err)
		return hits, nil
	}
	return expanded, nil
}
