package search

import (
	"context"
)

// ExpandEmailThreads replaces each mail hit with the full thread it belongs
// to. Hits already covering a whole thread pass through untouched, and the
// result never contains the same docId twice, so running the expansion over
// an already-expanded slice is a no-op.
func ExpandEmailThreads(ctx context.Context, c Client, email string, hits []Hit) ([]Hit, error) {
	threadIDs := make([]string, 0)
	seenThreads := map[string]bool{}
	for _, h := range hits {
		mail, ok := h.(*MailHit)
		if !ok || mail.ThreadID == "" {
			continue
		}
		if !seenThreads[mail.ThreadID] {
			seenThreads[mail.ThreadID] = true
			threadIDs = append(threadIDs, mail.ThreadID)
		}
	}
	if len(threadIDs) == 0 {
		return hits, nil
	}

	threadHits, err := c.SearchEmailThreads(ctx, threadIDs, email)
	if err != nil {
		return nil, err
	}

	// Original hits keep their order and relevance. Thread members not in
	// the original set follow, inheriting the best relevance seen for
	// their thread so downstream budgets treat them as one unit.
	bestByThread := map[string]float64{}
	for _, h := range hits {
		if mail, ok := h.(*MailHit); ok && mail.ThreadID != "" {
			if mail.Relevance() > bestByThread[mail.ThreadID] {
				bestByThread[mail.ThreadID] = mail.Relevance()
			}
		}
	}

	merged := make([]Hit, 0, len(hits)+len(threadHits))
	seenDocs := map[string]bool{}
	for _, h := range hits {
		if seenDocs[h.DocID()] {
			continue
		}
		seenDocs[h.DocID()] = true
		merged = append(merged, h)
	}
	for _, h := range threadHits {
		if seenDocs[h.DocID()] {
			continue
		}
		seenDocs[h.DocID()] = true
		if mail, ok := h.(*MailHit); ok {
			if best, has := bestByThread[mail.ThreadID]; has && mail.Score == 0 {
				mail.Score = best
			}
		}
		merged = append(merged, h)
	}
	return merged, nil
}

// ExpandChatThreads pulls in the surrounding thread for chat-message hits
// that are thread replies. Same dedupe contract as ExpandEmailThreads.
func ExpandChatThreads(ctx context.Context, c Client, hits []Hit) ([]Hit, error) {
	threadIDs := make([]string, 0)
	seenThreads := map[string]bool{}
	for _, h := range hits {
		msg, ok := h.(*ChatMessageHit)
		if !ok || msg.ThreadID == "" {
			continue
		}
		if !seenThreads[msg.ThreadID] {
			seenThreads[msg.ThreadID] = true
			threadIDs = append(threadIDs, msg.ThreadID)
		}
	}
	if len(threadIDs) == 0 {
		return hits, nil
	}

	threadHits, err := c.SearchThreads(ctx, threadIDs)
	if err != nil {
		return nil, err
	}

	merged := make([]Hit, 0, len(hits)+len(threadHits))
	seenDocs := map[string]bool{}
	for _, h := range hits {
		if seenDocs[h.DocID()] {
			continue
		}
		seenDocs[h.DocID()] = true
		merged = append(merged, h)
	}
	for _, h := range threadHits {
		if seenDocs[h.DocID()] {
			continue
		}
		seenDocs[h.DocID()] = true
		merged = append(merged, h)
	}
	return merged, nil
}
