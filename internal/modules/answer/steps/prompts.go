package steps

import (
	"fmt"
	"strings"
)

const answerOutputContract = `Respond with a single JSON object: {"answer": <string or null>}.
Write the answer in GitHub-flavored markdown inside the "answer" string.
Cite sources with bracketed index markers taken from the context blocks:
  - [n] cites the document shown under "Index n".
  - [d_i] cites image i of document d; only use markers that appear as "Image [d_i]" lines.
Place markers immediately after the statement they support. Never invent indices.
If the context does not contain the information needed, set "answer" to null. Do not apologize or explain inside the JSON.`

const kbOutputAddendum = `Knowledge-base blocks show per-chunk markers like [n_k]; cite the specific chunk with that marker instead of the bare document index.`

func reasoningAddendum() string {
	return fmt.Sprintf(`Before the JSON object you may think out loud between %s and %s tokens. Everything between the tokens is shown to the user as reasoning; keep it short and concrete. The JSON object must start immediately after %s.`,
		StartThinkingToken, EndThinkingToken, EndThinkingToken)
}

func userContextLines(u UserContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s.\n", userTimeLine(u))
	if u.Email != "" {
		fmt.Fprintf(&b, "The user is %s.\n", u.Email)
	}
	return b.String()
}

// answerSystemPrompt is the baseline generation prompt used by the
// iterative and filtered strategies and the scoped file path.
func answerSystemPrompt(u UserContext, reasoning, kbMode bool) string {
	var b strings.Builder
	b.WriteString("You are a workplace assistant answering questions from the user's company data. The numbered context blocks below the question are your only source of truth.\n\n")
	b.WriteString(userContextLines(u))
	b.WriteString("\n")
	b.WriteString(answerOutputContract)
	if kbMode {
		b.WriteString("\n")
		b.WriteString(kbOutputAddendum)
	}
	if reasoning {
		b.WriteString("\n\n")
		b.WriteString(reasoningAddendum())
	}
	return b.String()
}

// mailAnswerPrompt is used when a GetItems request resolved to mail docs.
func mailAnswerPrompt(u UserContext, reasoning bool) string {
	var b strings.Builder
	b.WriteString("You are a workplace assistant summarizing the user's email. The numbered context blocks are the emails they asked for, already filtered and ordered; present every one of them.\n")
	b.WriteString("List each email with sender, date, and a one-line gist, citing it with its [n] marker. Do not drop or reorder items.\n\n")
	b.WriteString(userContextLines(u))
	b.WriteString("\n")
	b.WriteString(answerOutputContract)
	if reasoning {
		b.WriteString("\n\n")
		b.WriteString(reasoningAddendum())
	}
	return b.String()
}

// itemsAnswerPrompt presents an exact item listing for non-mail GetItems.
func itemsAnswerPrompt(u UserContext, reasoning bool) string {
	var b strings.Builder
	b.WriteString("You are a workplace assistant listing items the user asked for. The numbered context blocks are the matching items, already filtered and ordered; present every one of them with its [n] marker.\n\n")
	b.WriteString(userContextLines(u))
	b.WriteString("\n")
	b.WriteString(answerOutputContract)
	if reasoning {
		b.WriteString("\n\n")
		b.WriteString(reasoningAddendum())
	}
	return b.String()
}

// meetingAnswerPrompt is used by the temporal expansion strategy.
func meetingAnswerPrompt(u UserContext, reasoning bool) string {
	var b strings.Builder
	b.WriteString("You are a workplace assistant answering a question about the user's meetings and related email. The numbered context blocks hold calendar events and emails from the searched time range.\n")
	b.WriteString("Prefer calendar events for when/where/who; use emails for surrounding discussion. State dates and times in the user's timezone.\n\n")
	b.WriteString(userContextLines(u))
	b.WriteString("\n")
	b.WriteString(answerOutputContract)
	if reasoning {
		b.WriteString("\n\n")
		b.WriteString(reasoningAddendum())
	}
	return b.String()
}

func routerSystemPrompt(u UserContext) string {
	var b strings.Builder
	b.WriteString(`You classify one user query against a workplace search backend and emit a retrieval plan as JSON.

Decide:
  - isFollowUp: true when the query continues the current topic thread ("show more", "what about bob", pronouns referring to prior results). A new subject is not a follow-up.
  - answer: when the conversation history alone fully answers the query (greetings, clarifications, questions about earlier answers), put the complete answer here and leave the retrieval fields empty. Otherwise null.
  - queryRewrite: a self-contained rewrite of the query when it relies on conversation context; otherwise null.
  - type: GetItems when the user wants an exact set of items ("my last 5 emails", "files from yesterday"); SearchWithFilters when they combine a content query with app/time/sort constraints; RetrieveInformation for everything else.
  - filterQuery: for SearchWithFilters, the content query with the constraints stripped out.
  - temporalDirection: "prev" or "next" when the query is about past or upcoming meetings or events relative to now; otherwise null.
  - filters.apps: subset of ["Gmail","Google Calendar","Google Drive","Slack"]. filters.entities: document subtypes when stated (e.g. "pdf", "spreadsheet").
  - filters.startTime / endTime: RFC3339 timestamps in the user's timezone when the query names a time range; otherwise empty strings.
  - filters.sortDirection: "desc" for newest-first requests, "asc" for oldest-first, else null.
  - filters.count and offset: for GetItems, how many items and where the page starts. For a "show more" follow-up, offset = previous offset + previous count.
  - filters.mailParticipants: people constraints on mail, under from/to/cc/bcc. Use the names or addresses exactly as the user wrote them.

`)
	b.WriteString(userContextLines(u))
	return b.String()
}

func rewriteSystemPrompt(n int) string {
	return fmt.Sprintf(`You generate alternative search queries. Given a user question and a sample of context that failed to answer it, emit JSON {"queries": [...]} with exactly %d rephrasings that might surface different documents: vary keywords, expand acronyms, try the likely document title. Each query is a short keyword phrase, not a sentence.`, n)
}

func rewriteSchema(n int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queries": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": n,
				"maxItems": n,
			},
		},
		"required":             []string{"queries"},
		"additionalProperties": false,
	}
}

func resolverSystemPrompt() string {
	return `You map people's names to email addresses. Given names and a sample of the user's mail traffic, emit JSON {"participants": {"from": [...], "to": [...], "cc": [...], "bcc": [...]}} where every entry that was a name is replaced by the best-matching address found in the sample. Keep entries that are already addresses unchanged. Drop names with no plausible match.`
}

func resolverSchema() map[string]any {
	strArr := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"participants": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": strArr, "to": strArr, "cc": strArr, "bcc": strArr,
				},
				"required":             []string{"from", "to", "cc", "bcc"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"participants"},
		"additionalProperties": false,
	}
}

func followUpSystemPrompt() string {
	return `You suggest follow-up questions. Given the latest user question and assistant answer, emit JSON {"questions": [...]} with exactly 3 short questions the user would plausibly ask next, each answerable from the same workplace data. No numbering, no quotes inside the questions.`
}

func followUpSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 3,
				"maxItems": 3,
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}
}

func titleSystemPrompt() string {
	return `You title chat conversations. Given the first user message, emit JSON {"title": "..."} with a title of at most 6 words, no quotes, no trailing punctuation.`
}

func titleSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
		},
		"required":             []string{"title"},
		"additionalProperties": false,
	}
}
