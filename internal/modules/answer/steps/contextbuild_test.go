package steps

import (
	"context"
	"strings"
	"testing"

	"github.com/seekwell/seekwell-backend/internal/search"
)

func TestBuildContextNumbersDocsFromStartIndex(t *testing.T) {
	hits := []search.Hit{
		&search.MailHit{HitBase: search.HitBase{ID: "m1", Score: 1}, Subject: "Offsite", From: "ana@corp.com", Chunks: []string{"see you there"}},
		&search.EventHit{HitBase: search.HitBase{ID: "e1", Score: 0.5}, Name: "Offsite kickoff", StartTime: 1750000000000, EndTime: 1750003600000},
	}

	built, err := buildContext(context.Background(), nil, ContextBuildInput{
		Hits:       hits,
		StartIndex: 5,
		UserQuery:  "when is the offsite",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(built.Text, "Index 5\n") || !strings.Contains(built.Text, "Index 6\n") {
		t.Fatalf("text = %q", built.Text)
	}
	if strings.Index(built.Text, "Index 5") > strings.Index(built.Text, "Index 6") {
		t.Fatal("doc order must follow hit order")
	}
	if !strings.Contains(built.Text, "Subject: Offsite") {
		t.Fatalf("mail block missing: %q", built.Text)
	}
	if !strings.Contains(built.Text, "Event: Offsite kickoff") {
		t.Fatalf("event block missing: %q", built.Text)
	}
}

func TestBuildContextChunkBudget(t *testing.T) {
	chunks := make([]string, 30)
	for i := range chunks {
		chunks[i] = "chunk body"
	}
	hits := []search.Hit{
		&search.MailHit{HitBase: search.HitBase{ID: "m1", Score: 1}, Subject: "Long thread", Chunks: chunks},
	}

	built, err := buildContext(context.Background(), nil, ContextBuildInput{Hits: hits, ChunkBudget: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(built.Text, "chunk body"); got != 3 {
		t.Fatalf("chunks rendered = %d, want 3", got)
	}
}

func TestBuildContextImageMarkers(t *testing.T) {
	hits := []search.Hit{
		&search.FileHit{
			HitBase:        search.HitBase{ID: "f1", Score: 1},
			Title:          "Deck",
			Chunks:         []string{"slide notes"},
			ImageFileNames: []string{"img/a.png", "img/b.png"},
		},
	}

	built, err := buildContext(context.Background(), nil, ContextBuildInput{Hits: hits, StartIndex: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(built.Text, "Image [2_0]") || !strings.Contains(built.Text, "Image [2_1]") {
		t.Fatalf("markers missing: %q", built.Text)
	}
	if built.ImagePaths["2_0"] != "img/a.png" || built.ImagePaths["2_1"] != "img/b.png" {
		t.Fatalf("paths = %v", built.ImagePaths)
	}
}

func TestBuildContextKbModeSubIndices(t *testing.T) {
	hits := []search.Hit{
		&search.KbFileHit{
			HitBase:  search.HitBase{ID: "kb1", Score: 1},
			FileName: "handbook.pdf",
			Chunks:   []string{"pto policy", "expense policy"},
		},
	}

	built, err := buildContext(context.Background(), nil, ContextBuildInput{Hits: hits, KbMode: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(built.Text, "[0_0] pto policy") || !strings.Contains(built.Text, "[0_1] expense policy") {
		t.Fatalf("kb markers missing: %q", built.Text)
	}
}
