package steps

import "testing"

func pushAll(t *testing.T, p *answerParser, deltas []string) (text, reasoning string, null bool) {
	t.Helper()
	for _, d := range deltas {
		tx, rs, isNull := p.Push(d)
		text += tx
		reasoning += rs
		if isNull {
			null = true
		}
	}
	return text, reasoning, null
}

func TestAnswerPrefixPlain(t *testing.T) {
	prefix, isNull, ok := answerPrefix(`{"answer": "hello world"}`)
	if !ok || isNull {
		t.Fatalf("ok=%v isNull=%v", ok, isNull)
	}
	if prefix != "hello world" {
		t.Fatalf("prefix = %q", prefix)
	}
}

func TestAnswerPrefixIncomplete(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"answer": "hel`, "hel"},
		{`{"ans`, ""},
		{`{"answer"`, ""},
		{`{"answer":`, ""},
		{`{"answer": "say \"hi`, `say "hi`},
		{`{"answer": "line\n`, "line\n"},
	}
	for _, c := range cases {
		prefix, _, _ := answerPrefix(c.in)
		if prefix != c.want {
			t.Errorf("answerPrefix(%q) = %q, want %q", c.in, prefix, c.want)
		}
	}
}

func TestAnswerPrefixHeldBackEscape(t *testing.T) {
	// A dangling backslash must not be emitted until its pair arrives.
	prefix, _, ok := answerPrefix(`{"answer": "tail\`)
	if !ok {
		t.Fatal("expected ok")
	}
	if prefix != "tail" {
		t.Fatalf("prefix = %q", prefix)
	}
}

func TestAnswerPrefixUnicodeEscape(t *testing.T) {
	prefix, _, _ := answerPrefix(`{"answer": "café"}`)
	if prefix != "café" {
		t.Fatalf("prefix = %q", prefix)
	}
	// Incomplete \u sequence is held back entirely.
	prefix, _, _ = answerPrefix(`{"answer": "caf\u00`)
	if prefix != "caf" {
		t.Fatalf("partial unicode: prefix = %q", prefix)
	}
}

func TestAnswerPrefixNull(t *testing.T) {
	_, isNull, ok := answerPrefix(`{"answer": null}`)
	if !ok || !isNull {
		t.Fatalf("ok=%v isNull=%v", ok, isNull)
	}
}

func TestAnswerPrefixCodeFence(t *testing.T) {
	prefix, _, ok := answerPrefix("```json\n{\"answer\": \"fenced\"}\n```")
	if !ok || prefix != "fenced" {
		t.Fatalf("ok=%v prefix=%q", ok, prefix)
	}
}

func TestParserIncrementalDeltas(t *testing.T) {
	p := &answerParser{}
	p.doneThinking = true
	text, _, null := pushAll(t, p, []string{`{"ans`, `wer": "one`, ` two`, ` three"}`})
	if null {
		t.Fatal("unexpected null")
	}
	if text != "one two three" {
		t.Fatalf("text = %q", text)
	}
	final, ok := p.Final()
	if !ok || final != "one two three" {
		t.Fatalf("final = %q ok=%v", final, ok)
	}
}

func TestParserThinkingSplitAcrossDeltas(t *testing.T) {
	p := &answerParser{}
	text, reasoning, _ := pushAll(t, p, []string{
		"<THINK", "ING>the plan", " is simple</THINK", `ING>{"answer": "done"}`,
	})
	if reasoning != "the plan is simple" {
		t.Fatalf("reasoning = %q", reasoning)
	}
	if text != "done" {
		t.Fatalf("text = %q", text)
	}
}

func TestParserNoThinkingPreamble(t *testing.T) {
	p := &answerParser{}
	text, reasoning, _ := pushAll(t, p, []string{`{"answer": "plain"}`})
	if reasoning != "" {
		t.Fatalf("reasoning = %q", reasoning)
	}
	if text != "plain" {
		t.Fatalf("text = %q", text)
	}
}

func TestParserNullAnswer(t *testing.T) {
	p := &answerParser{}
	p.doneThinking = true
	_, _, null := pushAll(t, p, []string{`{"answer": nu`, `ll}`})
	if !null {
		t.Fatal("expected null")
	}
	if _, ok := p.Final(); ok {
		t.Fatal("Final must report no answer")
	}
}
