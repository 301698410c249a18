package steps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

type scopedSearch struct {
	search.Client

	agentScopes  []search.AgentScope
	channelCalls [][]string
	fileCalls    [][]string
	fileOpts     []search.Options
	threadCalls  [][]string

	agentHits   []search.Hit
	channelHits []search.Hit
	fileHits    []search.Hit
	threadHits  []search.Hit
}

func (f *scopedSearch) SearchAgent(ctx context.Context, query, email string, scope search.AgentScope, opts search.Options) ([]search.Hit, error) {
	f.agentScopes = append(f.agentScopes, scope)
	return f.agentHits, nil
}

func (f *scopedSearch) SearchChannel(ctx context.Context, query, email string, channelIDs []string, limit int) ([]search.Hit, error) {
	f.channelCalls = append(f.channelCalls, channelIDs)
	return f.channelHits, nil
}

func (f *scopedSearch) SearchInFiles(ctx context.Context, query, email string, fileIDs []string, opts search.Options) ([]search.Hit, error) {
	f.fileCalls = append(f.fileCalls, fileIDs)
	f.fileOpts = append(f.fileOpts, opts)
	return f.fileHits, nil
}

func (f *scopedSearch) SearchThreads(ctx context.Context, threadIDs []string) ([]search.Hit, error) {
	f.threadCalls = append(f.threadCalls, threadIDs)
	return f.threadHits, nil
}

type cannedLLM struct {
	answer string
}

func (f *cannedLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, errors.New("not used")
}

func (f *cannedLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not used")
}

func (f *cannedLLM) StreamText(ctx context.Context, system, user string, onDelta func(string), onReasoning func(string)) (openai.StreamResult, error) {
	payload := `{"answer": "` + f.answer + `"}`
	if onDelta != nil {
		onDelta(payload)
	}
	return openai.StreamResult{Text: payload}, nil
}

// cancelingLLM simulates a stop request landing while the model streams.
type cancelingLLM struct {
	cancel context.CancelFunc
}

func (f *cancelingLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, errors.New("not used")
}

func (f *cancelingLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not used")
}

func (f *cancelingLLM) StreamText(ctx context.Context, system, user string, onDelta func(string), onReasoning func(string)) (openai.StreamResult, error) {
	f.cancel()
	return openai.StreamResult{}, ctx.Err()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func discardEmit(Event) error { return nil }

func scopedChatHit(id, threadID string) *search.ChatMessageHit {
	return &search.ChatMessageHit{
		HitBase:  search.HitBase{ID: id, Score: 1},
		ThreadID: threadID,
		Text:     "standup notes",
		Username: "ana",
	}
}

func TestScopedStrategyAgentScopeSearch(t *testing.T) {
	fs := &scopedSearch{
		agentHits:  []search.Hit{scopedChatHit("cm1", "t1")},
		threadHits: []search.Hit{scopedChatHit("cm2", "t1")},
	}
	d := Deps{Log: testLogger(t), LLM: &cannedLLM{answer: "All set."}, Search: fs}

	scope := ScopedInput{Agent: &search.AgentScope{
		Apps:       []string{"slack"},
		DocIDs:     []string{"d1"},
		ChannelIDs: []string{"c9"},
	}}
	res, err := runScopedStrategy(context.Background(), d, StrategyInput{
		Query: "what did the team decide",
		User:  UserContext{Email: "ana@corp.com"},
	}, scope, discardEmit)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAnswered {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if len(fs.agentScopes) != 1 || len(fs.agentScopes[0].DocIDs) != 1 {
		t.Fatalf("agent calls = %+v", fs.agentScopes)
	}
	if len(fs.channelCalls) != 0 {
		t.Fatalf("mixed agent scope must not use the channel search, got %v", fs.channelCalls)
	}
	// Chat hits pull in their surrounding thread.
	if len(fs.threadCalls) != 1 || fs.threadCalls[0][0] != "t1" {
		t.Fatalf("thread calls = %v", fs.threadCalls)
	}
}

func TestScopedStrategyChannelOnlyAgentScope(t *testing.T) {
	fs := &scopedSearch{channelHits: []search.Hit{scopedChatHit("cm1", "t7")}}
	d := Deps{Log: testLogger(t), LLM: &cannedLLM{answer: "Done."}, Search: fs}

	scope := ScopedInput{Agent: &search.AgentScope{ChannelIDs: []string{"c1", "c2"}}}
	if _, err := runScopedStrategy(context.Background(), d, StrategyInput{
		Query: "release status",
		User:  UserContext{Email: "ana@corp.com"},
	}, scope, discardEmit); err != nil {
		t.Fatal(err)
	}
	if len(fs.agentScopes) != 0 {
		t.Fatalf("channel-only scope must skip the agent endpoint, got %+v", fs.agentScopes)
	}
	if len(fs.channelCalls) != 1 || len(fs.channelCalls[0]) != 2 {
		t.Fatalf("channel calls = %v", fs.channelCalls)
	}
	if len(fs.threadCalls) != 1 || fs.threadCalls[0][0] != "t7" {
		t.Fatalf("thread calls = %v", fs.threadCalls)
	}
}

func TestScopedStrategyAttachmentRankProfile(t *testing.T) {
	fs := &scopedSearch{fileHits: []search.Hit{
		&search.FileHit{HitBase: search.HitBase{ID: "a1", Score: 1}, Title: "Upload", Chunks: []string{"body"}},
	}}
	d := Deps{Log: testLogger(t), LLM: &cannedLLM{answer: "Summarized."}, Search: fs}
	in := StrategyInput{Query: "summarize this", User: UserContext{Email: "ana@corp.com"}}

	_, err := runScopedStrategy(context.Background(), d, in, ScopedInput{AttachmentFileIDs: []string{"a1"}}, discardEmit)
	if err != nil {
		t.Fatal(err)
	}
	if fs.fileOpts[0].RankProfile != search.RankAttachment {
		t.Fatalf("rank profile = %q", fs.fileOpts[0].RankProfile)
	}

	// Mixing pill files in drops back to the default profile over the
	// union of ids.
	_, err = runScopedStrategy(context.Background(), d, in, ScopedInput{
		FileIDs:           []string{"p1"},
		AttachmentFileIDs: []string{"a1"},
	}, discardEmit)
	if err != nil {
		t.Fatal(err)
	}
	if got := fs.fileCalls[1]; len(got) != 2 || got[0] != "p1" || got[1] != "a1" {
		t.Fatalf("file ids = %v", got)
	}
	if fs.fileOpts[1].RankProfile != "" {
		t.Fatalf("rank profile = %q", fs.fileOpts[1].RankProfile)
	}
}

func TestScopedStrategyStopIsStreamClosure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs := &scopedSearch{fileHits: []search.Hit{
		&search.FileHit{HitBase: search.HitBase{ID: "f1", Score: 1}, Title: "Plan", Chunks: []string{"body"}},
	}}
	d := Deps{Log: testLogger(t), LLM: &cancelingLLM{cancel: cancel}, Search: fs}

	res, err := runScopedStrategy(ctx, d, StrategyInput{
		Query: "slow question",
		User:  UserContext{Email: "ana@corp.com"},
	}, ScopedInput{FileIDs: []string{"f1"}}, discardEmit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.Outcome != OutcomeStreamClosed {
		t.Fatalf("outcome = %v, want stream closure", res.Outcome)
	}
}

func TestOutcomeForStreamErr(t *testing.T) {
	if got := outcomeForStreamErr(sse.ErrStreamClosed); got != OutcomeStreamClosed {
		t.Fatalf("closed stream = %v", got)
	}
	if got := outcomeForStreamErr(context.Canceled); got != OutcomeStreamClosed {
		t.Fatalf("canceled = %v", got)
	}
	if got := outcomeForStreamErr(fmt.Errorf("llm stream: %w", context.Canceled)); got != OutcomeStreamClosed {
		t.Fatalf("wrapped canceled = %v", got)
	}
	if got := outcomeForStreamErr(errors.New("backend down")); got != OutcomeLocalError {
		t.Fatalf("other error = %v", got)
	}
}
