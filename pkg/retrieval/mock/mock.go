// Package mock provides a test double for the retrieval.Retriever interface.
package mock

import (
	"context"
	"sync"

	"github.com/podiumworks/rostrum/pkg/retrieval"
)

// RetrieveCall records a single invocation of Retrieve.
type RetrieveCall struct {
	// Ctx is the context passed to Retrieve.
	Ctx context.Context
	// Query is the query string passed to Retrieve.
	Query string
	// K is the requested result count.
	K int
}

// Retriever is a mock implementation of retrieval.Retriever.
// The zero value returns no chunks and no error, which mirrors a valid empty
// corpus — useful for asserting that empty retrieval never blocks a turn.
type Retriever struct {
	mu sync.Mutex

	// Chunks is returned by Retrieve (truncated to k).
	Chunks []retrieval.ContextChunk

	// Err, if non-nil, is returned as the error from Retrieve.
	Err error

	// RetrieveCalls records every invocation of Retrieve in order.
	RetrieveCalls []RetrieveCall
}

// Compile-time interface check.
var _ retrieval.Retriever = (*Retriever)(nil)

// Retrieve records the call and returns the configured chunks or error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]retrieval.ContextChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RetrieveCalls = append(r.RetrieveCalls, RetrieveCall{Ctx: ctx, Query: query, K: k})
	if r.Err != nil {
		return nil, r.Err
	}
	if k < len(r.Chunks) {
		return append([]retrieval.ContextChunk(nil), r.Chunks[:k]...), nil
	}
	return append([]retrieval.ContextChunk(nil), r.Chunks...), nil
}
