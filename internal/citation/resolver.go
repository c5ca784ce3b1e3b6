// Package citation resolves inline numeric markers in generated text against
// the retrieved context chunks that were offered to the model.
//
// Generated utterances cite sources as bracketed one-based indexes ("[2]")
// into the chunk list included in the prompt. Resolution is best-effort:
// markers pointing outside the chunk list are dropped silently, because
// malformed generation output must degrade a turn's citations, never fail
// the turn.
package citation

import (
	"regexp"
	"strconv"

	"github.com/podiumworks/rostrum/internal/transcript"
	"github.com/podiumworks/rostrum/pkg/retrieval"
)

// markerPattern matches an integer enclosed in square brackets.
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// maxQuoteLen caps the excerpt copied from a cited chunk into the citation.
const maxQuoteLen = 160

// Markers returns the distinct numeric markers found in generatedText, in
// first-occurrence order, without resolving them. Callers compare its length
// against the resolved citation count to measure how many markers were
// dropped.
func Markers(generatedText string) []int {
	matches := markerPattern.FindAllStringSubmatch(generatedText, -1)
	seen := make(map[int]bool, len(matches))
	var markers []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		markers = append(markers, n)
	}
	return markers
}

// Resolve scans generatedText for bracketed numeric markers and returns one
// Citation per distinct in-range marker, in first-occurrence order.
//
// A marker n refers to chunks[n-1]. Out-of-range markers are dropped without
// error, duplicates are collapsed to their first occurrence, and the input
// text is never modified.
func Resolve(generatedText string, chunks []retrieval.ContextChunk) []transcript.Citation {
	matches := markerPattern.FindAllStringSubmatch(generatedText, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(matches))
	var citations []transcript.Citation
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// Unreachable for \d+ short of overflow; treat as malformed.
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		if n < 1 || n > len(chunks) {
			continue
		}
		chunk := chunks[n-1]
		citations = append(citations, transcript.Citation{
			Marker:      n,
			SourceURL:   chunk.SourceURL,
			Publisher:   chunk.Publisher,
			RetrievedAt: chunk.RetrievedAt,
			AsOf:        chunk.AsOf,
			Quote:       truncate(chunk.Text, maxQuoteLen),
		})
	}
	return citations
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
