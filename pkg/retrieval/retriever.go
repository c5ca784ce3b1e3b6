// Package retrieval defines the context-lookup collaborator for the debate
// engine.
//
// A Retriever answers a free-text query with the k most relevant chunks of
// source material (news articles, voting records, transcripts, …). The engine
// treats results as advisory: they flavour prompts and feed citation
// resolution, and an empty result set is a valid answer that must never block
// turn generation.
//
// Implementations must be safe for concurrent use.
package retrieval

import (
	"context"
	"time"
)

// ContextChunk is one retrieved piece of source material, carrying the
// provenance metadata that citation resolution copies into Citations.
type ContextChunk struct {
	// Text is the chunk content included in prompts and quoted in citations.
	Text string

	// SourceURL is the canonical URL of the source document.
	SourceURL string

	// Publisher is the human-readable publisher name (e.g., "Reuters").
	Publisher string

	// RetrievedAt is when the source was fetched into the corpus.
	RetrievedAt time.Time

	// AsOf is the source's own publication or validity date, when known.
	// Zero when the source carries no date.
	AsOf time.Time
}

// Retriever is the abstraction over any context-lookup backend.
type Retriever interface {
	// Retrieve returns up to k chunks relevant to query, most relevant first.
	// An empty slice with a nil error is a valid result.
	Retrieve(ctx context.Context, query string, k int) ([]ContextChunk, error)
}
