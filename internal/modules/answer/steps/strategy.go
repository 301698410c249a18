package steps

import (
	"strings"
	"time"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/search"
)

// Deps are the shared collaborators every strategy uses.
type Deps struct {
	Log    *logger.Logger
	LLM    openai.Client
	Search search.Client
}

// StrategyInput parameterizes one strategy run.
type StrategyInput struct {
	Query          string
	Classification types.Classification
	User           UserContext
	Alpha          float64
	Reasoning      bool
	KbMode         bool
	// BaseIndex is the count of results already exposed to the model in
	// earlier iterations, so citation indices stay globally unique.
	BaseIndex int
	Span      *Span
}

// StrategyResult is what the orchestrator persists and reports.
type StrategyResult struct {
	Outcome AnswerOutcome
	Gen     generateResult
	// NextBaseIndex carries the grown index base out of reasoning runs.
	NextBaseIndex int
}

// Promo-style labels excluded from temporal mail searches.
var promoMailLabels = []string{"CATEGORY_PROMOTIONS", "CATEGORY_SOCIAL", "SPAM"}

// Router app names → backend app slugs.
var routerAppSlugs = map[string]string{
	"gmail":           search.AppGmail,
	"google calendar": search.AppCalendar,
	"calendar":        search.AppCalendar,
	"google drive":    search.AppDrive,
	"drive":           search.AppDrive,
	"slack":           search.AppSlack,
}

func normalizeApps(apps []string) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		key := strings.ToLower(strings.TrimSpace(a))
		if slug, ok := routerAppSlugs[key]; ok {
			out = append(out, slug)
			continue
		}
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

// appsToSchemas derives the document schemas to fetch for GetItems.
func appsToSchemas(apps []string) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, a := range normalizeApps(apps) {
		switch a {
		case search.AppGmail:
			add(search.SchemaMail)
		case search.AppCalendar:
			add(search.SchemaEvent)
		case search.AppDrive:
			add(search.SchemaFile)
		case search.AppSlack:
			add(search.SchemaChatMessage)
		}
	}
	return out
}

func mailOnly(apps []string) bool {
	normalized := normalizeApps(apps)
	if len(normalized) == 0 {
		return false
	}
	for _, a := range normalized {
		if a != search.AppGmail {
			return false
		}
	}
	return true
}

func includesCalendar(apps []string) bool {
	for _, a := range normalizeApps(apps) {
		if a == search.AppCalendar {
			return true
		}
	}
	return false
}

// classificationTimeRange parses the router's RFC3339 bounds into epoch
// millis. Unparseable values are treated as absent.
func classificationTimeRange(f types.ClassificationFilters) search.TimestampRange {
	var r search.TimestampRange
	if ms, ok := parseRFC3339Millis(f.StartTime); ok {
		r.From = &ms
	}
	if ms, ok := parseRFC3339Millis(f.EndTime); ok {
		r.To = &ms
	}
	return r
}

func parseRFC3339Millis(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func searchParticipants(p types.MailParticipants) search.MailParticipants {
	return search.MailParticipants{From: p.From, To: p.To, Cc: p.Cc, Bcc: p.Bcc}
}
