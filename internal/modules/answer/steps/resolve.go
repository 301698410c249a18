package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
)

// resolveParticipants converts name references in mail participant filters
// to addresses. Entries that already look like addresses pass through; for
// the rest an LLM maps names against a sample of the user's mail traffic.
func resolveParticipants(ctx context.Context, sc search.Client, llm openai.Client, u UserContext, p types.MailParticipants) types.MailParticipants {
	if p.Empty() || allAddresses(p.All()) {
		return p
	}

	names := []string{}
	for _, ref := range p.All() {
		if !looksLikeAddress(ref) {
			names = append(names, ref)
		}
	}

	hits, err := sc.Search(ctx, strings.Join(names, " "), u.Email, []string{search.AppGmail}, nil, search.Options{
		Limit: 50,
		Alpha: search.DefaultAlpha,
	})
	if err != nil || len(hits) == 0 {
		return p
	}

	sample := mailTrafficSample(hits)
	if sample == "" {
		return p
	}

	reqPayload, err := json.Marshal(p)
	if err != nil {
		return p
	}
	user := fmt.Sprintf("Participants:\n%s\n\nMail traffic sample:\n%s", reqPayload, sample)

	raw, err := llm.GenerateJSON(ctx, resolverSystemPrompt(), user, "participant_resolution", resolverSchema())
	if err != nil {
		return p
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return p
	}
	var out struct {
		Participants types.MailParticipants `json:"participants"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || out.Participants.Empty() {
		return p
	}
	return out.Participants
}

func mailTrafficSample(hits []search.Hit) string {
	var b strings.Builder
	n := 0
	for _, h := range hits {
		mail, ok := h.(*search.MailHit)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "From: %s", mail.From)
		if len(mail.To) > 0 {
			fmt.Fprintf(&b, " To: %s", strings.Join(mail.To, ", "))
		}
		fmt.Fprintf(&b, " Subject: %s\n", mail.Subject)
		n++
		if n >= 50 {
			break
		}
	}
	return b.String()
}

func allAddresses(refs []string) bool {
	for _, r := range refs {
		if !looksLikeAddress(r) {
			return false
		}
	}
	return true
}

func looksLikeAddress(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && strings.IndexByte(s[at+1:], '.') > 0 && !strings.ContainsAny(s, " \t")
}
