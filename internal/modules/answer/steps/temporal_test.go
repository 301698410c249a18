package steps

import (
	"strings"
	"testing"
	"time"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/search"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

func TestTemporalWindowGrowsLinearly(t *testing.T) {
	anchor := int64(1_700_000_000_000)

	for i, wantDays := range []int64{24, 36, 48} {
		w := temporalWindow(types.TemporalPrev, anchor, i)
		if *w.To != anchor {
			t.Fatalf("iter %d: to = %d, want anchor", i, *w.To)
		}
		if got := (*w.To - *w.From) / dayMillis; got != wantDays {
			t.Fatalf("iter %d: span = %d days, want %d", i, got, wantDays)
		}
	}
}

func TestTemporalWindowDirection(t *testing.T) {
	anchor := int64(1_700_000_000_000)

	next := temporalWindow(types.TemporalNext, anchor, 0)
	if *next.From != anchor || *next.To <= anchor {
		t.Fatalf("next window = [%d, %d]", *next.From, *next.To)
	}
	prev := temporalWindow(types.TemporalPrev, anchor, 0)
	if *prev.To != anchor || *prev.From >= anchor {
		t.Fatalf("prev window = [%d, %d]", *prev.From, *prev.To)
	}
}

func TestWidenRange(t *testing.T) {
	a, b, c, d := int64(100), int64(200), int64(50), int64(300)

	acc := widenRange(search.TimestampRange{}, search.TimestampRange{From: &a, To: &b})
	if *acc.From != 100 || *acc.To != 200 {
		t.Fatalf("acc = [%d, %d]", *acc.From, *acc.To)
	}
	acc = widenRange(acc, search.TimestampRange{From: &c, To: &d})
	if *acc.From != 50 || *acc.To != 300 {
		t.Fatalf("acc = [%d, %d]", *acc.From, *acc.To)
	}
	// A narrower window never shrinks the accumulated span.
	acc = widenRange(acc, search.TimestampRange{From: &a, To: &b})
	if *acc.From != 50 || *acc.To != 300 {
		t.Fatalf("acc = [%d, %d]", *acc.From, *acc.To)
	}
}

func TestSearchedRangeSummary(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	to := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	r := search.TimestampRange{From: &from, To: &to}

	s := searchedRangeSummary(types.TemporalNext, r, "UTC")
	if !strings.Contains(s, "March 1, 2025") || !strings.Contains(s, "April 15, 2025") {
		t.Fatalf("summary = %q", s)
	}
	if !strings.Contains(s, "upcoming") {
		t.Fatalf("next summary should mention upcoming: %q", s)
	}
	if strings.Contains(searchedRangeSummary(types.TemporalPrev, r, "UTC"), "upcoming") {
		t.Fatal("prev summary should not mention upcoming")
	}
}
