package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
)

// RouteInput is everything the classifier sees for one user turn.
type RouteInput struct {
	Query string
	// Messages is the full chat history, oldest first, up to and
	// excluding the current user turn.
	Messages []types.Message
	User     UserContext
}

// classifyQuery runs the single routing LLM call and returns a validated
// classification. The history is pruned to the current topic thread, prior
// topics are summarized as chain breaks, and the previous user turn's
// classification is supplied so the model can advance pagination.
func classifyQuery(ctx context.Context, llm openai.Client, in RouteInput) (types.Classification, error) {
	thread := topicThread(in.Messages)
	prev := previousClassification(in.Messages)
	breaks := chainBreaks(in.Messages, thread)

	system := routerSystemPrompt(in.User)
	user := routerUserPrompt(in.Query, thread, breaks, prev)

	raw, err := llm.GenerateJSON(ctx, system, user, "query_classification", routerSchema())
	if err != nil {
		return types.Classification{}, fmt.Errorf("classify query: %w", err)
	}

	var c types.Classification
	payload, err := json.Marshal(raw)
	if err != nil {
		return types.Classification{}, fmt.Errorf("classify query: encode: %w", err)
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return types.Classification{}, fmt.Errorf("classify query: decode: %w", err)
	}

	normalizeClassification(&c, prev)
	return c, nil
}

// topicThread walks backward from the newest user message, keeping turns
// while their classification says isFollowUp, and includes the first
// non-follow-up user message as the topic root.
func topicThread(messages []types.Message) []types.Message {
	start := 0
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != types.MessageRoleUser {
			continue
		}
		c, ok := parseClassification(m.Classification)
		if !ok || !c.IsFollowUp {
			start = i
			break
		}
	}
	return messages[start:]
}

// previousClassification returns the classification of the most recent
// prior user turn, or nil.
func previousClassification(messages []types.Message) *types.Classification {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != types.MessageRoleUser {
			continue
		}
		if c, ok := parseClassification(messages[i].Classification); ok {
			return c
		}
		return nil
	}
	return nil
}

// chainBreaks collects the classifications of user turns that started
// earlier topics, newest last, so the router can recognise topic switches.
func chainBreaks(messages, thread []types.Message) []types.Classification {
	cutoff := len(messages) - len(thread)
	var out []types.Classification
	for _, m := range messages[:cutoff] {
		if m.Role != types.MessageRoleUser {
			continue
		}
		c, ok := parseClassification(m.Classification)
		if !ok || c.IsFollowUp {
			continue
		}
		out = append(out, *c)
	}
	const max = 5
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func parseClassification(raw []byte) (*types.Classification, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var c types.Classification
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false
	}
	return &c, true
}

// normalizeClassification clamps model output into valid ranges and applies
// the follow-up carry-forward rules.
func normalizeClassification(c *types.Classification, prev *types.Classification) {
	switch c.Type {
	case types.QueryTypeGetItems, types.QueryTypeSearchWithFilters, types.QueryTypeRetrieveInformation:
	default:
		c.Type = types.QueryTypeRetrieveInformation
	}
	switch c.TemporalDirection {
	case types.TemporalPrev, types.TemporalNext:
	default:
		c.TemporalDirection = types.TemporalNone
	}
	switch c.Filters.SortDirection {
	case types.SortAsc, types.SortDesc:
	default:
		c.Filters.SortDirection = ""
	}

	if c.Filters.Count < 0 {
		c.Filters.Count = 0
	}
	if c.Filters.Count > MaxUserRequestCount {
		c.Filters.Count = MaxUserRequestCount
	}
	if c.Filters.Offset < 0 {
		c.Filters.Offset = 0
	}

	if !c.IsFollowUp || prev == nil {
		return
	}
	if len(c.Filters.Apps) == 0 {
		c.Filters.Apps = prev.Filters.Apps
	}
	if len(c.Filters.Entities) == 0 {
		c.Filters.Entities = prev.Filters.Entities
	}
	if c.Filters.MailParticipants.Empty() {
		c.Filters.MailParticipants = prev.Filters.MailParticipants
	}
	// "Show me more" advances past the previous page.
	if c.Type == types.QueryTypeGetItems && c.Filters.Offset == 0 && prev.Filters.Count > 0 {
		c.Filters.Offset = prev.Filters.Offset + prev.Filters.Count
		if c.Filters.Count == 0 {
			c.Filters.Count = prev.Filters.Count
		}
	}
}

func routerSchema() map[string]any {
	str := map[string]any{"type": []string{"string", "null"}}
	strArr := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isFollowUp":        map[string]any{"type": "boolean"},
			"answer":            str,
			"queryRewrite":      str,
			"temporalDirection": map[string]any{"type": []string{"string", "null"}, "enum": []any{"prev", "next", nil}},
			"type":              map[string]any{"type": "string", "enum": []string{"GetItems", "SearchWithFilters", "RetrieveInformation"}},
			"filterQuery":       str,
			"filters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"apps":          strArr,
					"entities":      strArr,
					"startTime":     str,
					"endTime":       str,
					"sortDirection": map[string]any{"type": []string{"string", "null"}, "enum": []any{"asc", "desc", nil}},
					"count":         map[string]any{"type": "integer"},
					"offset":        map[string]any{"type": "integer"},
					"mailParticipants": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"from": strArr,
							"to":   strArr,
							"cc":   strArr,
							"bcc":  strArr,
						},
						"required":             []string{"from", "to", "cc", "bcc"},
						"additionalProperties": false,
					},
				},
				"required":             []string{"apps", "entities", "startTime", "endTime", "sortDirection", "count", "offset", "mailParticipants"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"isFollowUp", "answer", "queryRewrite", "temporalDirection", "type", "filterQuery", "filters"},
		"additionalProperties": false,
	}
}

func routerUserPrompt(query string, thread []types.Message, breaks []types.Classification, prev *types.Classification) string {
	var b strings.Builder
	if len(breaks) > 0 {
		b.WriteString("Earlier topics in this chat (most recent last):\n")
		for _, c := range breaks {
			line, _ := json.Marshal(c)
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	}
	if len(thread) > 0 {
		b.WriteString("Current topic thread:\n")
		for _, m := range thread {
			content := m.Content
			if len(content) > 2000 {
				content = content[:2000]
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
		}
		b.WriteString("\n")
	}
	if prev != nil {
		line, _ := json.Marshal(prev)
		fmt.Fprintf(&b, "Previous classification: %s\n\n", line)
	}
	fmt.Fprintf(&b, "User query: %s", query)
	return b.String()
}

func userTimeLine(u UserContext) string {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil || u.Timezone == "" {
		loc = time.UTC
	}
	now := time.UnixMilli(u.NowMillis)
	if u.NowMillis <= 0 {
		now = time.Now()
	}
	return now.In(loc).Format("Monday, 02 January 2006 15:04 MST")
}
