package steps

import (
	"testing"
	"time"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/search"
)

func TestNormalizeApps(t *testing.T) {
	got := normalizeApps([]string{"Gmail", " Google Calendar ", "unknown-app", ""})
	want := []string{search.AppGmail, search.AppCalendar, "unknown-app"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAppsToSchemas(t *testing.T) {
	got := appsToSchemas([]string{"gmail", "drive", "gmail", "slack"})
	want := []string{search.SchemaMail, search.SchemaFile, search.SchemaChatMessage}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMailOnly(t *testing.T) {
	if !mailOnly([]string{"Gmail"}) {
		t.Fatal("gmail alone is mail-only")
	}
	if mailOnly([]string{"gmail", "drive"}) {
		t.Fatal("mixed apps are not mail-only")
	}
	if mailOnly(nil) {
		t.Fatal("no apps means no mail-only shortcut")
	}
}

func TestIncludesCalendar(t *testing.T) {
	if !includesCalendar([]string{"google calendar"}) {
		t.Fatal("calendar not detected")
	}
	if includesCalendar([]string{"gmail"}) {
		t.Fatal("false positive")
	}
}

func TestClassificationTimeRange(t *testing.T) {
	f := types.ClassificationFilters{StartTime: "2025-06-01", EndTime: "2025-06-30T23:59:59Z"}
	r := classificationTimeRange(f)
	if r.From == nil || r.To == nil {
		t.Fatalf("range = %+v", r)
	}
	wantFrom := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if *r.From != wantFrom {
		t.Fatalf("from = %d, want %d", *r.From, wantFrom)
	}

	// Garbage bounds are treated as absent.
	r = classificationTimeRange(types.ClassificationFilters{StartTime: "soonish"})
	if r.From != nil || r.To != nil {
		t.Fatalf("range = %+v", r)
	}
}

func TestMergeHitsDedupesByDocID(t *testing.T) {
	a := []search.Hit{mailHit("m1", "a"), mailHit("m2", "b")}
	b := []search.Hit{mailHit("m2", "b-dup"), mailHit("m3", "c")}
	got := mergeHits(a, b)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].DocID() != "m1" || got[1].DocID() != "m2" || got[2].DocID() != "m3" {
		t.Fatalf("order = %v %v %v", got[0].DocID(), got[1].DocID(), got[2].DocID())
	}
}

func TestFilterSchemas(t *testing.T) {
	hits := []search.Hit{
		mailHit("m1", "a"),
		&search.FileHit{HitBase: search.HitBase{ID: "f1"}},
		&search.EventHit{HitBase: search.HitBase{ID: "e1"}},
	}
	got := filterSchemas(hits, search.SchemaMail, search.SchemaEvent)
	if len(got) != 2 || got[0].DocID() != "m1" || got[1].DocID() != "e1" {
		t.Fatalf("got %v", got)
	}
}
