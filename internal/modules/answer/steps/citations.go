package steps

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/search"
)

var (
	// [n] — text citation. The negative lookahead Go lacks is handled by
	// matching the pair form first and masking its spans.
	textCitationRe = regexp.MustCompile(`\[(\d+)\]`)
	// [d_i] — image citation, or KB sub-item citation in KB mode.
	pairCitationRe = regexp.MustCompile(`\[(\d+)_(\d+)\]`)
)

// citationScanner incrementally scans accumulated prose for citation
// markers and emits each referenced source exactly once.
type citationScanner struct {
	sc         search.Client
	results    []search.Hit
	baseIndex  int
	kbMode     bool
	email      string
	imagePaths map[string]string

	yieldedText  map[int]bool
	yieldedImage map[string]bool
}

func newCitationScanner(sc search.Client, results []search.Hit, baseIndex int, kbMode bool, email string, imagePaths map[string]string) *citationScanner {
	if imagePaths == nil {
		imagePaths = map[string]string{}
	}
	return &citationScanner{
		sc:           sc,
		results:      results,
		baseIndex:    baseIndex,
		kbMode:       kbMode,
		email:        email,
		imagePaths:   imagePaths,
		yieldedText:  map[int]bool{},
		yieldedImage: map[string]bool{},
	}
}

func (cs *citationScanner) resolve(n int) search.Hit {
	ix := n - cs.baseIndex
	if ix < 0 || ix >= len(cs.results) {
		return nil
	}
	return cs.results[ix]
}

// Scan walks all markers in the accumulated prose and emits the ones not
// yet yielded, in document order.
func (cs *citationScanner) Scan(ctx context.Context, prose string, emit EmitFunc) error {
	for _, m := range pairCitationRe.FindAllStringSubmatch(prose, -1) {
		key := m[1] + "_" + m[2]
		if cs.yieldedImage[key] {
			continue
		}
		d, _ := strconv.Atoi(m[1])
		sub, _ := strconv.Atoi(m[2])
		if cs.kbMode {
			// KB sub-item citation: cite the owning file.
			if err := cs.emitText(ctx, d, emit); err != nil {
				return err
			}
			cs.yieldedImage[key] = true
			continue
		}
		if err := cs.emitImage(ctx, d, sub, key, emit); err != nil {
			return err
		}
		cs.yieldedImage[key] = true
	}

	masked := pairCitationRe.ReplaceAllStringFunc(prose, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	for _, m := range textCitationRe.FindAllStringSubmatch(masked, -1) {
		n, _ := strconv.Atoi(m[1])
		if err := cs.emitText(ctx, n, emit); err != nil {
			return err
		}
	}
	return nil
}

func (cs *citationScanner) emitText(ctx context.Context, n int, emit EmitFunc) error {
	if cs.yieldedText[n] {
		return nil
	}
	hit := cs.resolve(n)
	if hit == nil {
		return nil
	}
	// Data sources and attachments are context-only; never shown as
	// visible citations.
	switch hit.Schema() {
	case search.SchemaDataSource, search.SchemaAttachment:
		cs.yieldedText[n] = true
		return nil
	}
	c := hitToCitation(hit, cs.email)
	cs.yieldedText[n] = true
	return emit(Event{Citation: &c, CitationIndex: n})
}

func (cs *citationScanner) emitImage(ctx context.Context, d, sub int, key string, emit EmitFunc) error {
	hit := cs.resolve(d)
	if hit == nil {
		return nil
	}
	path := cs.imagePaths[key]
	if path == "" {
		path = imageFileName(hit, sub)
	}
	if path == "" {
		return nil
	}
	raw, err := cs.sc.FetchImage(ctx, path)
	if err != nil {
		// A missing image never kills the stream.
		return nil
	}
	ic := types.ImageCitation{
		CitationKey: key,
		ImagePath:   path,
		ImageData:   base64.StdEncoding.EncodeToString(raw),
		MimeType:    mimeFromPath(path),
		Item:        hitToCitation(hit, cs.email),
	}
	return emit(Event{ImageCitation: &ic})
}

func imageFileName(hit search.Hit, sub int) string {
	switch v := hit.(type) {
	case *search.FileHit:
		if sub >= 0 && sub < len(v.ImageFileNames) {
			return v.ImageFileNames[sub]
		}
	case *search.KbFileHit:
		if sub >= 0 && sub < len(v.ImageFileNames) {
			return v.ImageFileNames[sub]
		}
	}
	return ""
}

func mimeFromPath(path string) string {
	s := strings.ToLower(path)
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

// hitToCitation converts a hit to its client-facing citation. Mail doc ids
// are tenant-scoped; the current user's own id comes from the hit's userMap
// and the URL path segment is rewritten to match.
func hitToCitation(hit search.Hit, email string) types.Citation {
	c := types.Citation{
		DocID: hit.DocID(),
		Title: search.HitTitle(hit),
		URL:   search.HitURL(hit),
		App:   search.HitApp(hit),
	}
	if v, ok := hit.(*search.FileHit); ok {
		c.Entity = v.Entity
	}
	if mail, ok := hit.(*search.MailHit); ok && email != "" {
		if userDocID := strings.TrimSpace(mail.UserMap[strings.ToLower(email)]); userDocID != "" && userDocID != c.DocID {
			if c.URL != "" {
				c.URL = strings.Replace(c.URL, c.DocID, userDocID, 1)
			}
			c.DocID = userDocID
		}
	}
	return c
}

// processMessage rewrites internal citation indices to 1-based display
// positions. Markers whose index is not in the map are left alone. Text
// already in display form is returned unchanged, so applying the same map
// twice is a no-op even when a key doubles as another marker's display
// value.
func processMessage(text string, citationMap map[int]int) string {
	if inDisplayForm(text, citationMap) {
		return text
	}
	return replaceIndices(text, func(n int) (int, bool) {
		display, ok := citationMap[n]
		return display, ok
	})
}

// inDisplayForm reports whether the text's known markers already carry
// display positions. Display positions are assigned in first-citation
// order, so a rewritten text reads 1, 2, 3, … across the first occurrences
// of its known markers. Internal-index form can only match that pattern
// where the map is identity, and rewriting is a no-op there anyway.
func inDisplayForm(text string, m map[int]int) bool {
	if len(m) == 0 {
		return true
	}
	values := make(map[int]bool, len(m))
	for _, v := range m {
		values[v] = true
	}
	next := 1
	seen := map[int]bool{}
	for _, mk := range bareMarkers(text) {
		if _, isKey := m[mk.n]; !isKey && !values[mk.n] {
			continue
		}
		if seen[mk.n] {
			continue
		}
		if mk.n != next {
			return false
		}
		seen[mk.n] = true
		next++
	}
	return true
}

type bareMarker struct {
	n          int
	start, end int
}

// bareMarkers lists the [n] markers in document order, skipping spans that
// belong to a [d_i] pair.
func bareMarkers(text string) []bareMarker {
	pairs := pairCitationRe.FindAllStringIndex(text, -1)
	inPair := func(start, end int) bool {
		for _, span := range pairs {
			if start >= span[0] && end <= span[1] {
				return true
			}
		}
		return false
	}
	var out []bareMarker
	for _, loc := range textCitationRe.FindAllStringSubmatchIndex(text, -1) {
		if inPair(loc[0], loc[1]) {
			continue
		}
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		out = append(out, bareMarker{n: n, start: loc[0], end: loc[1]})
	}
	return out
}

func replaceIndices(text string, lookup func(int) (int, bool)) string {
	var out strings.Builder
	last := 0
	for _, mk := range bareMarkers(text) {
		display, ok := lookup(mk.n)
		if !ok {
			continue
		}
		out.WriteString(text[last:mk.start])
		fmt.Fprintf(&out, "[%d]", display)
		last = mk.end
	}
	out.WriteString(text[last:])
	return out.String()
}

// groupLineCitations dedupes the citations on each hard line and regroups
// them at end-of-line in ascending order, one leading space per marker.
// Used for the web-search answer variant.
func groupLineCitations(text string) string {
	lines := strings.Split(text, "\n")
	for li, line := range lines {
		matches := textCitationRe.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		seen := map[int]bool{}
		indices := []int{}
		for _, m := range matches {
			n, _ := strconv.Atoi(m[1])
			if !seen[n] {
				seen[n] = true
				indices = append(indices, n)
			}
		}
		sort.Ints(indices)
		stripped := strings.TrimRight(textCitationRe.ReplaceAllString(line, ""), " ")
		var b strings.Builder
		b.WriteString(stripped)
		for _, n := range indices {
			fmt.Fprintf(&b, " [%d]", n)
		}
		lines[li] = b.String()
	}
	return strings.Join(lines, "\n")
}
