package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seekwell/seekwell-backend/internal/platform/openai"
)

// SuggestFollowUps proposes the three next questions shown under an
// assistant answer.
func SuggestFollowUps(ctx context.Context, llm openai.Client, question, answer string) ([]string, error) {
	const maxAnswer = 4000
	if len(answer) > maxAnswer {
		answer = answer[:maxAnswer]
	}
	user := fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer)

	raw, err := llm.GenerateJSON(ctx, followUpSystemPrompt(), user, "follow_up_questions", followUpSchema())
	if err != nil {
		return nil, fmt.Errorf("follow-up questions: %w", err)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if len(out.Questions) > 3 {
		out.Questions = out.Questions[:3]
	}
	return out.Questions, nil
}
