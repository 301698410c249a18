package steps

import (
	"strings"
	"unicode/utf8"
)

// Thinking tokens bracket an optional reasoning preamble ahead of the JSON
// answer object. The model is instructed to emit them verbatim.
const (
	StartThinkingToken = "<THINKING>"
	EndThinkingToken   = "</THINKING>"
)

// answerPrefix extracts the longest available prefix of the "answer" string
// value from a possibly incomplete JSON object. It tolerates leading
// whitespace, an optional fenced-code wrapper, and an unterminated string.
// isNull reports a literal `"answer": null`; ok is false while the buffer
// has not yet reached the answer value.
func answerPrefix(buf string) (prefix string, isNull bool, ok bool) {
	s := strings.TrimLeft(buf, " \t\r\n")
	s = stripCodeFence(s)
	s = strings.TrimLeft(s, " \t\r\n")

	// Buffer degenerated to a bare close: treat as no answer.
	if s == "}" {
		return "", true, true
	}

	keyIdx := strings.Index(s, `"answer"`)
	if keyIdx < 0 {
		return "", false, false
	}
	rest := s[keyIdx+len(`"answer"`):]
	rest = strings.TrimLeft(rest, " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return "", false, false
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if rest == "" {
		return "", false, false
	}

	if strings.HasPrefix(rest, "null") || strings.HasPrefix("null", rest) {
		// Either complete `null` or an unambiguous prefix of it.
		return "", strings.HasPrefix(rest, "null"), strings.HasPrefix(rest, "null")
	}

	if rest[0] != '"' {
		return "", false, false
	}

	return decodeStringPrefix(rest[1:]), false, true
}

// decodeStringPrefix unescapes as much of a JSON string body as is present,
// stopping at the closing quote or end of buffer. A trailing incomplete
// escape sequence is held back rather than emitted.
func decodeStringPrefix(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c == '"' {
			break
		}
		if c != '\\' {
			out.WriteByte(c)
			i++
			continue
		}
		// Escape sequence; may be cut off mid-stream.
		if i+1 >= len(s) {
			break
		}
		switch s[i+1] {
		case '"':
			out.WriteByte('"')
		case '\\':
			out.WriteByte('\\')
		case '/':
			out.WriteByte('/')
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case 'u':
			if i+6 > len(s) {
				return out.String()
			}
			r := decodeHexRune(s[i+2 : i+6])
			if r >= 0 {
				out.WriteRune(r)
			}
			i += 6
			continue
		default:
			// Unknown escape; keep the raw character.
			out.WriteByte(s[i+1])
		}
		i += 2
	}
	return out.String()
}

func decodeHexRune(h string) rune {
	var v rune
	for i := 0; i < len(h); i++ {
		c := h[i]
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			v |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= rune(c-'A') + 10
		default:
			return -1
		}
	}
	if !utf8.ValidRune(v) {
		return -1
	}
	return v
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	// Optional language tag up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && nl <= 16 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimRight(s, " \t\r\n"), "```")
	return s
}

// answerParser feeds streamed deltas through answerPrefix and reports only
// the newly available suffix each time.
type answerParser struct {
	buf     strings.Builder
	emitted int
	// reasoning mode state
	inThinking   bool
	doneThinking bool
	pending      string
}

// Push consumes one delta and returns the new prose suffix plus any
// reasoning text it contained.
func (p *answerParser) Push(delta string) (text string, reasoning string, isNull bool) {
	if !p.doneThinking {
		reasoning, delta = p.consumeThinking(delta)
		if delta == "" {
			return "", reasoning, false
		}
	}
	p.buf.WriteString(delta)
	prefix, null, ok := answerPrefix(p.buf.String())
	if null {
		return "", reasoning, true
	}
	if !ok || len(prefix) <= p.emitted {
		return "", reasoning, false
	}
	text = prefix[p.emitted:]
	p.emitted = len(prefix)
	return text, reasoning, false
}

// Final returns the complete parsed answer.
func (p *answerParser) Final() (string, bool) {
	prefix, null, ok := answerPrefix(p.buf.String())
	if null || !ok {
		return "", false
	}
	return prefix, true
}

// consumeThinking routes tokens inside the thinking brackets to reasoning
// output. Tokens may split the bracket markers across deltas, so a small
// carry buffer holds potential marker prefixes.
func (p *answerParser) consumeThinking(delta string) (reasoning, remainder string) {
	s := p.pending + delta
	p.pending = ""

	var out strings.Builder
	for s != "" {
		if !p.inThinking {
			idx := strings.Index(s, StartThinkingToken)
			if idx < 0 {
				if holdback := markerSuffix(s, StartThinkingToken); holdback > 0 {
					p.pending = s[len(s)-holdback:]
					s = s[:len(s)-holdback]
				}
				// No reasoning preamble; everything flows to the
				// JSON buffer.
				p.doneThinking = p.pending == "" && s != ""
				return out.String(), s
			}
			s = s[idx+len(StartThinkingToken):]
			p.inThinking = true
			continue
		}
		idx := strings.Index(s, EndThinkingToken)
		if idx < 0 {
			if holdback := markerSuffix(s, EndThinkingToken); holdback > 0 {
				p.pending = s[len(s)-holdback:]
				s = s[:len(s)-holdback]
			}
			out.WriteString(s)
			return out.String(), ""
		}
		out.WriteString(s[:idx])
		s = s[idx+len(EndThinkingToken):]
		p.inThinking = false
		p.doneThinking = true
		return out.String(), s
	}
	return out.String(), ""
}

// markerSuffix reports the length of the longest proper prefix of marker
// that the string ends with.
func markerSuffix(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}
