package steps

import (
	"encoding/json"
	"testing"

	types "github.com/seekwell/seekwell-backend/internal/domain"
)

func TestNormalizeClassificationClampsEnums(t *testing.T) {
	c := types.Classification{
		Type:              "Banana",
		TemporalDirection: "sideways",
	}
	c.Filters.SortDirection = "down"
	c.Filters.Count = 500
	c.Filters.Offset = -3

	normalizeClassification(&c, nil)

	if c.Type != types.QueryTypeRetrieveInformation {
		t.Fatalf("type = %s", c.Type)
	}
	if c.TemporalDirection != types.TemporalNone {
		t.Fatalf("direction = %s", c.TemporalDirection)
	}
	if c.Filters.SortDirection != "" {
		t.Fatalf("sort = %s", c.Filters.SortDirection)
	}
	if c.Filters.Count != MaxUserRequestCount {
		t.Fatalf("count = %d", c.Filters.Count)
	}
	if c.Filters.Offset != 0 {
		t.Fatalf("offset = %d", c.Filters.Offset)
	}
}

func TestNormalizeClassificationFollowUpInheritsScope(t *testing.T) {
	prev := &types.Classification{Type: types.QueryTypeRetrieveInformation}
	prev.Filters.Apps = []string{"gmail"}
	prev.Filters.Entities = []string{"invoice"}
	prev.Filters.MailParticipants.From = []string{"ana@corp.com"}

	c := types.Classification{IsFollowUp: true, Type: types.QueryTypeRetrieveInformation}
	normalizeClassification(&c, prev)

	if len(c.Filters.Apps) != 1 || c.Filters.Apps[0] != "gmail" {
		t.Fatalf("apps = %v", c.Filters.Apps)
	}
	if len(c.Filters.Entities) != 1 || c.Filters.Entities[0] != "invoice" {
		t.Fatalf("entities = %v", c.Filters.Entities)
	}
	if len(c.Filters.MailParticipants.From) != 1 {
		t.Fatalf("participants = %+v", c.Filters.MailParticipants)
	}
}

func TestNormalizeClassificationShowMoreAdvancesOffset(t *testing.T) {
	prev := &types.Classification{Type: types.QueryTypeGetItems}
	prev.Filters.Count = 10
	prev.Filters.Offset = 0

	c := types.Classification{IsFollowUp: true, Type: types.QueryTypeGetItems}
	normalizeClassification(&c, prev)

	if c.Filters.Offset != 10 {
		t.Fatalf("offset = %d, want 10", c.Filters.Offset)
	}
	if c.Filters.Count != 10 {
		t.Fatalf("count = %d, want 10", c.Filters.Count)
	}

	// An explicit offset from the model wins.
	c2 := types.Classification{IsFollowUp: true, Type: types.QueryTypeGetItems}
	c2.Filters.Offset = 25
	normalizeClassification(&c2, prev)
	if c2.Filters.Offset != 25 {
		t.Fatalf("offset = %d, want 25", c2.Filters.Offset)
	}
}

func userMsg(content string, c *types.Classification) types.Message {
	m := types.Message{Role: types.MessageRoleUser, Content: content}
	if c != nil {
		raw, _ := json.Marshal(c)
		m.Classification = raw
	}
	return m
}

func assistantMsg(content string) types.Message {
	return types.Message{Role: types.MessageRoleAssistant, Content: content}
}

func TestTopicThreadStopsAtTopicRoot(t *testing.T) {
	followUp := &types.Classification{IsFollowUp: true, Type: types.QueryTypeRetrieveInformation}
	root := &types.Classification{Type: types.QueryTypeRetrieveInformation}

	messages := []types.Message{
		userMsg("old topic", root),
		assistantMsg("old answer"),
		userMsg("new topic", root),
		assistantMsg("new answer"),
		userMsg("and then?", followUp),
		assistantMsg("follow-up answer"),
	}

	thread := topicThread(messages)
	if len(thread) != 4 {
		t.Fatalf("thread = %d messages, want 4", len(thread))
	}
	if thread[0].Content != "new topic" {
		t.Fatalf("thread root = %q", thread[0].Content)
	}

	breaks := chainBreaks(messages, thread)
	if len(breaks) != 1 {
		t.Fatalf("chain breaks = %d, want 1", len(breaks))
	}
}

func TestPreviousClassification(t *testing.T) {
	c := &types.Classification{Type: types.QueryTypeGetItems}
	messages := []types.Message{
		userMsg("list my files", c),
		assistantMsg("here they are"),
	}
	prev := previousClassification(messages)
	if prev == nil || prev.Type != types.QueryTypeGetItems {
		t.Fatalf("prev = %+v", prev)
	}
	if previousClassification(nil) != nil {
		t.Fatal("empty history must return nil")
	}
}
