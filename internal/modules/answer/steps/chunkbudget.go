package steps

import (
	"sort"

	"github.com/seekwell/seekwell-backend/internal/search"
)

// Per-doc chunk caps by schema. Drive files carry more useful excerpt
// density than mail bodies, so they get a higher cap.
func chunkCapForHit(h search.Hit) int {
	switch h.Schema() {
	case search.SchemaFile:
		return 20
	case search.SchemaKbFile:
		return 20
	case search.SchemaAttachment:
		return 10
	case search.SchemaMail:
		return 6
	default:
		return 6
	}
}

// allocateChunkBudget splits a global chunk budget across hits
// proportionally to relevance, capped per doc, then reclaims leftover
// budget greedily for the top-ranked docs.
func allocateChunkBudget(hits []search.Hit, total int) []int {
	n := len(hits)
	alloc := make([]int, n)
	if n == 0 || total <= 0 {
		return alloc
	}

	var sum float64
	for _, h := range hits {
		if h.Relevance() > 0 {
			sum += h.Relevance()
		}
	}

	used := 0
	for i, h := range hits {
		var share int
		if sum > 0 {
			share = int(float64(total) * h.Relevance() / sum)
		} else {
			share = total / n
		}
		if share < 1 {
			share = 1
		}
		if cap := chunkCapForHit(h); share > cap {
			share = cap
		}
		alloc[i] = share
		used += share
	}

	// Proportional rounding may overshoot when every doc gets the 1-chunk
	// floor; trim from the bottom-ranked docs first.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return hits[order[a]].Relevance() > hits[order[b]].Relevance()
	})

	for i := n - 1; i >= 0 && used > total; i-- {
		idx := order[i]
		if alloc[idx] > 0 {
			alloc[idx]--
			used--
		}
	}

	// Reclaim leftover budget greedily for the best docs, up to caps.
	for _, idx := range order {
		if used >= total {
			break
		}
		cap := chunkCapForHit(hits[idx])
		for alloc[idx] < cap && used < total {
			alloc[idx]++
			used++
		}
	}

	return alloc
}
