package services

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	chatrepo "github.com/seekwell/seekwell-backend/internal/data/repos/chat"
	"github.com/seekwell/seekwell-backend/internal/modules/answer"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

type titleLLM struct {
	title string
	err   error
}

func (f *titleLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"title": f.title}, nil
}

func (f *titleLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not used")
}

func (f *titleLLM) StreamText(ctx context.Context, system, user string, onDelta func(string), onReasoning func(string)) (openai.StreamResult, error) {
	return openai.StreamResult{}, errors.New("not used")
}

type titleChatRepo struct {
	chatrepo.ChatRepo
	updates []map[string]interface{}
}

func (f *titleChatRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	f.updates = append(f.updates, fields)
	return nil
}

func TestResolveTitle(t *testing.T) {
	s := &chatService{answers: answer.New(answer.UsecasesDeps{AI: &titleLLM{title: "Quarterly revenue recap"}})}
	if got := s.resolveTitle(context.Background(), "how did revenue do last quarter"); got != "Quarterly revenue recap" {
		t.Fatalf("title = %q", got)
	}

	s = &chatService{answers: answer.New(answer.UsecasesDeps{AI: &titleLLM{err: errors.New("rate limited")}})}
	msg := "how did revenue do last quarter and why"
	if got := s.resolveTitle(context.Background(), msg); got != fallbackTitle(msg) {
		t.Fatalf("fallback = %q", got)
	}
}

func TestUpgradeTitlePersistsAndEmits(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := sse.NewStream(rec)
	if err != nil {
		t.Fatal(err)
	}
	repo := &titleChatRepo{}
	s := &chatService{
		answers: answer.New(answer.UsecasesDeps{AI: &titleLLM{title: "Offsite planning"}}),
		chats:   repo,
	}

	s.upgradeTitle(stream, uuid.New(), "chat-x", "when is the offsite")

	if len(repo.updates) != 1 || repo.updates[0]["title"] != "Offsite planning" {
		t.Fatalf("updates = %v", repo.updates)
	}
	body := rec.Body.String()
	if !strings.Contains(body, sse.EventChatTitleUpdate) || !strings.Contains(body, "Offsite planning") {
		t.Fatalf("body = %q", body)
	}
}

func TestUpgradeTitleAfterStreamEnd(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := sse.NewStream(rec)
	if err != nil {
		t.Fatal(err)
	}
	stream.Close()
	repo := &titleChatRepo{}
	s := &chatService{
		answers: answer.New(answer.UsecasesDeps{AI: &titleLLM{title: "Offsite planning"}}),
		chats:   repo,
	}

	// A late title still lands in the database even when the stream is
	// gone.
	s.upgradeTitle(stream, uuid.New(), "chat-x", "when is the offsite")
	if len(repo.updates) != 1 {
		t.Fatalf("updates = %v", repo.updates)
	}
}

func TestExtractContextPills(t *testing.T) {
	clean, files, threads := extractContextPills("summarize [file:doc-1.pdf] and [thread:T42] please [file:doc2]")
	if clean != "summarize  and  please" {
		t.Fatalf("clean = %q", clean)
	}
	if len(files) != 2 || files[0] != "doc-1.pdf" || files[1] != "doc2" {
		t.Fatalf("files = %v", files)
	}
	if len(threads) != 1 || threads[0] != "T42" {
		t.Fatalf("threads = %v", threads)
	}
}

func TestExtractContextPillsNoPills(t *testing.T) {
	clean, files, threads := extractContextPills("plain question")
	if clean != "plain question" || files != nil || threads != nil {
		t.Fatalf("clean=%q files=%v threads=%v", clean, files, threads)
	}
}

func TestExtractContextPillsOnlyPills(t *testing.T) {
	// A message that is nothing but pills keeps its original text so the
	// query is never empty.
	clean, files, _ := extractContextPills("[file:a.pdf]")
	if clean != "[file:a.pdf]" {
		t.Fatalf("clean = %q", clean)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
}

func TestParseModelConfigCapabilityList(t *testing.T) {
	s := parseModelConfig(`{"model":"o4-mini","capabilities":["Reasoning","websearch"]}`)
	if s.Model != "o4-mini" {
		t.Fatalf("model = %q", s.Model)
	}
	if !s.Reasoning || !s.WebSearch || s.DeepResearch {
		t.Fatalf("settings = %+v", s)
	}
}

func TestParseModelConfigCapabilityFlags(t *testing.T) {
	s := parseModelConfig(`{"model":"gpt-4.1","capabilities":{"reasoning":false,"deepResearch":true}}`)
	if s.Reasoning || !s.DeepResearch {
		t.Fatalf("settings = %+v", s)
	}
}

func TestParseModelConfigTopLevelFlags(t *testing.T) {
	s := parseModelConfig(`{"model":"gpt-4.1","reasoning":true,"websearch":true}`)
	if !s.Reasoning || !s.WebSearch {
		t.Fatalf("settings = %+v", s)
	}
}

func TestParseModelConfigGarbage(t *testing.T) {
	s := parseModelConfig("not json")
	if s.Model != "" || s.Reasoning || s.WebSearch || s.DeepResearch {
		t.Fatalf("settings = %+v", s)
	}
}

func TestParseKbItemsObjectShape(t *testing.T) {
	files, folders := parseKbItems(`{"fileIds":["f1","f2"],"folderIds":["d1"]}`)
	if len(files) != 2 || len(folders) != 1 {
		t.Fatalf("files=%v folders=%v", files, folders)
	}
}

func TestParseKbItemsListShape(t *testing.T) {
	files, folders := parseKbItems(`[{"id":"f1","type":"file"},{"id":"d1","type":"Folder"},{"id":"f2","type":""}]`)
	if len(files) != 2 || files[0] != "f1" || files[1] != "f2" {
		t.Fatalf("files = %v", files)
	}
	if len(folders) != 1 || folders[0] != "d1" {
		t.Fatalf("folders = %v", folders)
	}
}

func TestParseKbItemsEmpty(t *testing.T) {
	files, folders := parseKbItems("   ")
	if files != nil || folders != nil {
		t.Fatalf("files=%v folders=%v", files, folders)
	}
}

func TestFallbackTitle(t *testing.T) {
	if got := fallbackTitle("what changed in the Q3 revenue forecast this week"); got != "what changed in the Q3 revenue" {
		t.Fatalf("got %q", got)
	}
	if got := fallbackTitle("  hello  "); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := fallbackTitle("   "); got != "New chat" {
		t.Fatalf("got %q", got)
	}
}

func TestAttachmentObjectKey(t *testing.T) {
	key := attachmentObjectKey("ws-1", "chat-ext", "file-9", "report.pdf")
	if key != "ws-1/chat-ext/file-9/report.pdf" {
		t.Fatalf("key = %q", key)
	}
}
