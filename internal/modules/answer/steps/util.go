package steps

import (
	"context"
	"errors"

	"github.com/seekwell/seekwell-backend/internal/search"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

// outcomeForStreamErr classifies a failed generation. A canceled context
// means a stop request or a client disconnect, which is a premature close
// rather than a failure.
func outcomeForStreamErr(err error) AnswerOutcome {
	if errors.Is(err, sse.ErrStreamClosed) || errors.Is(err, context.Canceled) {
		return OutcomeStreamClosed
	}
	return OutcomeLocalError
}

// mergeHits unions result sets keeping the first occurrence of each doc.
func mergeHits(sets ...[]search.Hit) []search.Hit {
	seen := map[string]bool{}
	var out []search.Hit
	for _, set := range sets {
		for _, h := range set {
			if seen[h.DocID()] {
				continue
			}
			seen[h.DocID()] = true
			out = append(out, h)
		}
	}
	return out
}

// filterSchemas keeps only hits whose schema is in the allow set.
func filterSchemas(hits []search.Hit, schemas ...string) []search.Hit {
	allow := map[string]bool{}
	for _, s := range schemas {
		allow[s] = true
	}
	out := hits[:0:0]
	for _, h := range hits {
		if allow[h.Schema()] {
			out = append(out, h)
		}
	}
	return out
}
