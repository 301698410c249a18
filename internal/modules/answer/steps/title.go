package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/seekwell/seekwell-backend/internal/platform/openai"
)

// GenerateTitle names a new chat from its first user message.
func GenerateTitle(ctx context.Context, llm openai.Client, firstMessage string) (string, error) {
	const maxInput = 1000
	if len(firstMessage) > maxInput {
		firstMessage = firstMessage[:maxInput]
	}

	raw, err := llm.GenerateJSON(ctx, titleSystemPrompt(), firstMessage, "chat_title", titleSchema())
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	var out struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", err
	}
	title := strings.Trim(strings.TrimSpace(out.Title), `"`)
	if title == "" {
		title = "New chat"
	}
	return title, nil
}
