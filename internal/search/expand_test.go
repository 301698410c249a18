package search

import (
	"context"
	"testing"
)

// fakeClient serves canned thread lookups; every other method is unused by
// the expansion helpers.
type fakeClient struct {
	Client
	mailThreads map[string][]Hit
	chatThreads map[string][]Hit
	calls       int
}

func (f *fakeClient) SearchEmailThreads(ctx context.Context, threadIDs []string, email string) ([]Hit, error) {
	f.calls++
	var out []Hit
	for _, id := range threadIDs {
		out = append(out, f.mailThreads[id]...)
	}
	return out, nil
}

func (f *fakeClient) SearchThreads(ctx context.Context, threadIDs []string) ([]Hit, error) {
	f.calls++
	var out []Hit
	for _, id := range threadIDs {
		out = append(out, f.chatThreads[id]...)
	}
	return out, nil
}

func threadMail(id, threadID string, score float64) *MailHit {
	return &MailHit{HitBase: HitBase{ID: id, Score: score}, ThreadID: threadID}
}

func TestExpandEmailThreadsPullsSiblings(t *testing.T) {
	fc := &fakeClient{mailThreads: map[string][]Hit{
		"t1": {threadMail("m1", "t1", 0), threadMail("m2", "t1", 0)},
	}}
	hits := []Hit{threadMail("m1", "t1", 0.8)}

	out, err := ExpandEmailThreads(context.Background(), fc, "ana@corp.com", hits)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].DocID() != "m1" {
		t.Fatalf("original hit must stay first, got %s", out[0].DocID())
	}
	// Thread siblings inherit the best relevance seen for their thread.
	if out[1].DocID() != "m2" || out[1].Relevance() != 0.8 {
		t.Fatalf("sibling = %s score %v", out[1].DocID(), out[1].Relevance())
	}
}

func TestExpandEmailThreadsIdempotent(t *testing.T) {
	fc := &fakeClient{mailThreads: map[string][]Hit{
		"t1": {threadMail("m1", "t1", 0), threadMail("m2", "t1", 0)},
	}}
	hits := []Hit{threadMail("m1", "t1", 0.8)}

	once, err := ExpandEmailThreads(context.Background(), fc, "ana@corp.com", hits)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := ExpandEmailThreads(context.Background(), fc, "ana@corp.com", once)
	if err != nil {
		t.Fatal(err)
	}
	if len(twice) != len(once) {
		t.Fatalf("second expansion changed size: %d -> %d", len(once), len(twice))
	}
	seen := map[string]bool{}
	for _, h := range twice {
		if seen[h.DocID()] {
			t.Fatalf("duplicate doc %s", h.DocID())
		}
		seen[h.DocID()] = true
	}
}

func TestExpandEmailThreadsNoMailHits(t *testing.T) {
	fc := &fakeClient{}
	hits := []Hit{&FileHit{HitBase: HitBase{ID: "f1"}}}
	out, err := ExpandEmailThreads(context.Background(), fc, "ana@corp.com", hits)
	if err != nil {
		t.Fatal(err)
	}
	if fc.calls != 0 {
		t.Fatal("no thread lookup expected")
	}
	if len(out) != 1 || out[0].DocID() != "f1" {
		t.Fatalf("out = %+v", out)
	}
}

func TestExpandChatThreads(t *testing.T) {
	fc := &fakeClient{chatThreads: map[string][]Hit{
		"slack-t": {
			&ChatMessageHit{HitBase: HitBase{ID: "c1"}, ThreadID: "slack-t"},
			&ChatMessageHit{HitBase: HitBase{ID: "c2"}, ThreadID: "slack-t"},
		},
	}}
	hits := []Hit{&ChatMessageHit{HitBase: HitBase{ID: "c1", Score: 0.5}, ThreadID: "slack-t"}}

	out, err := ExpandChatThreads(context.Background(), fc, hits)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Relevance() != 0.5 {
		t.Fatal("original hit must keep its relevance")
	}
}
