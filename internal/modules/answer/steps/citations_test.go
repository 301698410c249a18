package steps

import (
	"context"
	"testing"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/search"
)

func mailHit(id, subject string) search.Hit {
	return &search.MailHit{
		HitBase: search.HitBase{ID: id, Score: 1},
		Subject: subject,
		URL:     "https://mail.example.com/" + id,
	}
}

func collectCitations(t *testing.T, cs *citationScanner, prose string) []types.Citation {
	t.Helper()
	var out []types.Citation
	err := cs.Scan(context.Background(), prose, func(e Event) error {
		if e.Citation != nil {
			out = append(out, *e.Citation)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

func TestScannerEmitsEachSourceOnce(t *testing.T) {
	hits := []search.Hit{mailHit("m1", "Q3 plan"), mailHit("m2", "Budget")}
	cs := newCitationScanner(nil, hits, 0, false, "", nil)

	got := collectCitations(t, cs, "The plan [0] ships in May [0], per finance [1].")
	if len(got) != 2 {
		t.Fatalf("citations = %d, want 2", len(got))
	}
	if got[0].DocID != "m1" || got[1].DocID != "m2" {
		t.Fatalf("docIds = %s, %s", got[0].DocID, got[1].DocID)
	}

	// Rescanning the grown buffer yields nothing new.
	got = collectCitations(t, cs, "The plan [0] ships in May [0], per finance [1]. More [1].")
	if len(got) != 0 {
		t.Fatalf("rescan emitted %d citations, want 0", len(got))
	}
}

func TestScannerBaseIndexOffset(t *testing.T) {
	hits := []search.Hit{mailHit("m9", "Later page")}
	cs := newCitationScanner(nil, hits, 7, false, "", nil)

	if got := collectCitations(t, cs, "see [7]"); len(got) != 1 || got[0].DocID != "m9" {
		t.Fatalf("got %+v", got)
	}
	// Indices outside the window resolve to nothing.
	if got := collectCitations(t, cs, "see [3] and [99]"); len(got) != 0 {
		t.Fatalf("out-of-window emitted %d", len(got))
	}
}

func TestScannerSkipsContextOnlySchemas(t *testing.T) {
	hits := []search.Hit{
		&search.AttachmentHit{HitBase: search.HitBase{ID: "att1"}, FileName: "deck.pdf"},
		mailHit("m1", "Visible"),
	}
	cs := newCitationScanner(nil, hits, 0, false, "", nil)
	got := collectCitations(t, cs, "from the deck [0] and the mail [1]")
	if len(got) != 1 || got[0].DocID != "m1" {
		t.Fatalf("got %+v", got)
	}
}

func TestScannerKbPairMarkerCitesOwningFile(t *testing.T) {
	hits := []search.Hit{
		&search.KbFileHit{HitBase: search.HitBase{ID: "kb1"}, FileName: "handbook.pdf"},
	}
	cs := newCitationScanner(nil, hits, 0, true, "", nil)
	got := collectCitations(t, cs, "per the handbook [0_2]")
	if len(got) != 1 || got[0].DocID != "kb1" {
		t.Fatalf("got %+v", got)
	}
	// The pair span must not double as a bare [0] citation later.
	if got := collectCitations(t, cs, "per the handbook [0_2] again"); len(got) != 0 {
		t.Fatalf("re-emitted: %+v", got)
	}
}

func TestHitToCitationUserMapRemap(t *testing.T) {
	h := &search.MailHit{
		HitBase: search.HitBase{ID: "shared-doc"},
		Subject: "Offsite",
		URL:     "https://mail.example.com/shared-doc",
		UserMap: map[string]string{"ana@corp.com": "ana-doc"},
	}
	c := hitToCitation(h, "Ana@Corp.com")
	if c.DocID != "ana-doc" {
		t.Fatalf("docId = %s", c.DocID)
	}
	if c.URL != "https://mail.example.com/ana-doc" {
		t.Fatalf("url = %s", c.URL)
	}
	// Unknown user keeps the shared id.
	c = hitToCitation(h, "bob@corp.com")
	if c.DocID != "shared-doc" {
		t.Fatalf("docId = %s", c.DocID)
	}
}

func TestProcessMessageRewritesAndIsIdempotent(t *testing.T) {
	m := map[int]int{7: 1, 9: 2}
	in := "First [7], then [9], then [7] again. Image [7_0] stays."
	want := "First [1], then [2], then [1] again. Image [7_0] stays."
	got := processMessage(in, m)
	if got != want {
		t.Fatalf("got %q", got)
	}
	if again := processMessage(got, m); again != got {
		t.Fatalf("second pass changed text: %q", again)
	}
}

func TestProcessMessageOutOfOrderCitationsIdempotent(t *testing.T) {
	// Citing [2] before [0] yields a map whose key 2 collides with the
	// display value of 0. The rewrite must not chain through that overlap,
	// and a second pass must leave display positions alone.
	m := map[int]int{2: 1, 0: 2}
	in := "alpha [2] beta [0]"
	want := "alpha [1] beta [2]"
	got := processMessage(in, m)
	if got != want {
		t.Fatalf("got %q", got)
	}
	if again := processMessage(got, m); again != got {
		t.Fatalf("second pass changed text: %q", again)
	}
}

func TestProcessMessageLeavesUnknownMarkers(t *testing.T) {
	got := processMessage("known [3], unknown [12]", map[int]int{3: 1})
	if got != "known [1], unknown [12]" {
		t.Fatalf("got %q", got)
	}
}

func TestGroupLineCitations(t *testing.T) {
	in := "Revenue grew fast. [2] [1] [2]\nNo markers here.\nSecond line. [3] [3]"
	want := "Revenue grew fast. [1] [2]\nNo markers here.\nSecond line. [3]"
	if got := groupLineCitations(in); got != want {
		t.Fatalf("got %q", got)
	}
}

func TestMimeFromPath(t *testing.T) {
	if mimeFromPath("chart.JPG") != "image/jpeg" {
		t.Fatal("jpg")
	}
	if mimeFromPath("figure.webp") != "image/webp" {
		t.Fatal("webp")
	}
	if mimeFromPath("noext") != "image/png" {
		t.Fatal("default")
	}
}
