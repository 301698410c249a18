package steps

import (
	"strings"
	"testing"

	types "github.com/seekwell/seekwell-backend/internal/domain"
)

func TestCitationMapFirstCitationOrder(t *testing.T) {
	sources := []citedSource{
		{Index: 9, Citation: types.Citation{DocID: "d9"}},
		{Index: 2, Citation: types.Citation{DocID: "d2"}},
		{Index: 14, Citation: types.Citation{DocID: "d14"}},
	}
	m := citationMap(sources)
	if m[9] != 1 || m[2] != 2 || m[14] != 3 {
		t.Fatalf("map = %v", m)
	}
}

func TestOrderedCitations(t *testing.T) {
	sources := []citedSource{
		{Index: 9, Citation: types.Citation{DocID: "d9"}},
		{Index: 2, Citation: types.Citation{DocID: "d2"}},
	}
	got := orderedCitations(sources)
	if len(got) != 2 || got[0].DocID != "d9" || got[1].DocID != "d2" {
		t.Fatalf("got %v", got)
	}
}

func TestSpanTrace(t *testing.T) {
	root := NewTrace("answer")
	child := root.Child("router").Set("queryType", "GetItems")
	child.End()
	root.End()

	s := string(root.JSON())
	for _, want := range []string{`"answer"`, `"router"`, `"queryType"`, `"GetItems"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("trace %s missing %s", s, want)
		}
	}

	// Nil spans absorb all calls.
	var nilSpan *Span
	nilSpan.Child("x").Set("k", 1).End()
}
