package citation

import (
	"strings"
	"testing"
	"time"

	"github.com/podiumworks/rostrum/pkg/retrieval"
)

func chunks(n int) []retrieval.ContextChunk {
	out := make([]retrieval.ContextChunk, n)
	for i := range out {
		out[i] = retrieval.ContextChunk{
			Text:        strings.Repeat("x", 10),
			SourceURL:   "https://example.org/doc",
			Publisher:   "Example Press",
			RetrievedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func TestResolveOutOfRangeDropped(t *testing.T) {
	t.Parallel()

	// Two chunks, markers [1] and [3]: only [1] resolves.
	got := Resolve("spending rose [1] while revenue fell [3].", chunks(2))
	if len(got) != 1 {
		t.Fatalf("Resolve returned %d citations, want 1", len(got))
	}
	if got[0].Marker != 1 {
		t.Errorf("citation marker = %d, want 1", got[0].Marker)
	}
	if got[0].Publisher != "Example Press" {
		t.Errorf("citation publisher = %q, want %q", got[0].Publisher, "Example Press")
	}
}

func TestResolveDeduplicatesByFirstOccurrence(t *testing.T) {
	t.Parallel()

	got := Resolve("first [2], then [1], then [2] again.", chunks(2))
	if len(got) != 2 {
		t.Fatalf("Resolve returned %d citations, want 2", len(got))
	}
	if got[0].Marker != 2 || got[1].Marker != 1 {
		t.Errorf("markers = [%d, %d], want [2, 1]", got[0].Marker, got[1].Marker)
	}
}

func TestResolveNoMarkers(t *testing.T) {
	t.Parallel()

	if got := Resolve("no citations here", chunks(3)); got != nil {
		t.Errorf("Resolve returned %v for markerless text, want nil", got)
	}
}

func TestResolveZeroMarkerDropped(t *testing.T) {
	t.Parallel()

	if got := Resolve("bogus [0] marker", chunks(2)); got != nil {
		t.Errorf("Resolve returned %v for [0], want nil", got)
	}
}

func TestResolveQuoteTruncation(t *testing.T) {
	t.Parallel()

	long := chunks(1)
	long[0].Text = strings.Repeat("a", 500)

	got := Resolve("see [1]", long)
	if len(got) != 1 {
		t.Fatalf("Resolve returned %d citations, want 1", len(got))
	}
	if n := len([]rune(got[0].Quote)); n > maxQuoteLen {
		t.Errorf("quote is %d runes, want at most %d", n, maxQuoteLen)
	}
	if !strings.HasSuffix(got[0].Quote, "…") {
		t.Errorf("truncated quote %q does not end with ellipsis", got[0].Quote)
	}
}

func TestMarkers(t *testing.T) {
	t.Parallel()

	got := Markers("cite [3], then [1], then [3] again and [12]")
	want := []int{3, 1, 12}
	if len(got) != len(want) {
		t.Fatalf("Markers returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Markers[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
