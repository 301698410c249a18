package chat

import "strings"

// QueryType is the router's retrieval strategy decision.
type QueryType string

const (
	QueryTypeGetItems            QueryType = "GetItems"
	QueryTypeSearchWithFilters   QueryType = "SearchWithFilters"
	QueryTypeRetrieveInformation QueryType = "RetrieveInformation"
)

type TemporalDirection string

const (
	TemporalPrev TemporalDirection = "prev"
	TemporalNext TemporalDirection = "next"
	TemporalNone TemporalDirection = ""
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type MailParticipants struct {
	From []string `json:"from,omitempty"`
	To   []string `json:"to,omitempty"`
	Cc   []string `json:"cc,omitempty"`
	Bcc  []string `json:"bcc,omitempty"`
}

func (p MailParticipants) Empty() bool {
	return len(p.From) == 0 && len(p.To) == 0 && len(p.Cc) == 0 && len(p.Bcc) == 0
}

// All returns every participant reference in a stable order.
func (p MailParticipants) All() []string {
	out := make([]string, 0, len(p.From)+len(p.To)+len(p.Cc)+len(p.Bcc))
	out = append(out, p.From...)
	out = append(out, p.To...)
	out = append(out, p.Cc...)
	out = append(out, p.Bcc...)
	return out
}

type ClassificationFilters struct {
	Apps             []string         `json:"apps,omitempty"`
	Entities         []string         `json:"entities,omitempty"`
	StartTime        string           `json:"startTime,omitempty"`
	EndTime          string           `json:"endTime,omitempty"`
	SortDirection    SortDirection    `json:"sortDirection,omitempty"`
	Count            int              `json:"count,omitempty"`
	Offset           int              `json:"offset,omitempty"`
	MailParticipants MailParticipants `json:"mailParticipants,omitempty"`
}

// Classification is the validated output of the query router LLM call.
// It is persisted on the user message so follow-ups can inherit scope and
// advance pagination.
type Classification struct {
	IsFollowUp        bool                  `json:"isFollowUp"`
	Answer            string                `json:"answer,omitempty"`
	QueryRewrite      string                `json:"queryRewrite,omitempty"`
	TemporalDirection TemporalDirection     `json:"temporalDirection,omitempty"`
	Type              QueryType             `json:"type"`
	FilterQuery       string                `json:"filterQuery,omitempty"`
	Filters           ClassificationFilters `json:"filters"`
}

// EffectiveQuery is the retrieval query string: the rewrite wins when set.
func (c Classification) EffectiveQuery(original string) string {
	if q := strings.TrimSpace(c.QueryRewrite); q != "" {
		return q
	}
	return strings.TrimSpace(original)
}

func (c Classification) HasDirectAnswer() bool {
	return strings.TrimSpace(c.Answer) != ""
}
