package steps

import (
	"testing"

	"github.com/seekwell/seekwell-backend/internal/search"
)

func scoredFile(id string, score float64) search.Hit {
	return &search.FileHit{HitBase: search.HitBase{ID: id, Score: score}}
}

func scoredMail(id string, score float64) search.Hit {
	return &search.MailHit{HitBase: search.HitBase{ID: id, Score: score}}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func TestAllocateChunkBudgetEmpty(t *testing.T) {
	if got := allocateChunkBudget(nil, 120); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
	alloc := allocateChunkBudget([]search.Hit{scoredMail("m", 1)}, 0)
	if len(alloc) != 1 || alloc[0] != 0 {
		t.Fatalf("got %v", alloc)
	}
}

func TestAllocateChunkBudgetRespectsCaps(t *testing.T) {
	hits := []search.Hit{scoredMail("m", 10), scoredFile("f", 1)}
	alloc := allocateChunkBudget(hits, 120)
	if alloc[0] > 6 {
		t.Fatalf("mail alloc %d exceeds cap", alloc[0])
	}
	if alloc[1] > 20 {
		t.Fatalf("file alloc %d exceeds cap", alloc[1])
	}
	if sum(alloc) > 120 {
		t.Fatalf("total %d exceeds budget", sum(alloc))
	}
}

func TestAllocateChunkBudgetNeverExceedsTotal(t *testing.T) {
	hits := make([]search.Hit, 30)
	for i := range hits {
		hits[i] = scoredMail("m", 0.01)
	}
	alloc := allocateChunkBudget(hits, 10)
	if sum(alloc) > 10 {
		t.Fatalf("total %d exceeds budget 10", sum(alloc))
	}
}

func TestAllocateChunkBudgetReclaimsForTopDocs(t *testing.T) {
	hits := []search.Hit{scoredFile("best", 0.9), scoredMail("ok", 0.1)}
	alloc := allocateChunkBudget(hits, 26)
	// Budget comfortably covers both caps (20 + 6); reclaim should fill
	// the top doc to its cap.
	if alloc[0] != 20 || alloc[1] != 6 {
		t.Fatalf("alloc = %v", alloc)
	}
}

func TestAllocateChunkBudgetZeroRelevanceSplitsEvenly(t *testing.T) {
	hits := []search.Hit{scoredMail("a", 0), scoredMail("b", 0)}
	alloc := allocateChunkBudget(hits, 8)
	if alloc[0] != 4 || alloc[1] != 4 {
		t.Fatalf("alloc = %v", alloc)
	}
}
