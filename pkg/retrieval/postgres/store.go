// Package postgres implements retrieval.Retriever on a PostgreSQL table with
// a pgvector HNSW index.
//
// Queries are embedded via an embeddings.Provider and matched against stored
// chunk embeddings by cosine distance. The store also supports ingestion
// (Index / IndexBatch) so that external pipelines can populate the corpus.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/podiumworks/rostrum/pkg/provider/embeddings"
	"github.com/podiumworks/rostrum/pkg/retrieval"
)

// Schema is the SQL DDL for the context_chunks table. Execute it via
// [Store.Migrate] or apply it manually during deployment. The embedding
// dimension is substituted at migration time from the embeddings provider.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS context_chunks (
    id           TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    embedding    vector(%d) NOT NULL,
    source_url   TEXT NOT NULL DEFAULT '',
    publisher    TEXT NOT NULL DEFAULT '',
    retrieved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    as_of        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_context_chunks_embedding
    ON context_chunks USING hnsw (embedding vector_cosine_ops);
`

// Store is a [retrieval.Retriever] backed by PostgreSQL + pgvector.
// All methods are safe for concurrent use.
type Store struct {
	pool  *pgxpool.Pool
	embed embeddings.Provider
}

// Compile-time interface check.
var _ retrieval.Retriever = (*Store)(nil)

// New creates a Store using the given connection pool and embeddings provider.
// The caller is responsible for calling [Store.Migrate] before issuing queries.
func New(pool *pgxpool.Pool, embed embeddings.Provider) *Store {
	return &Store{pool: pool, embed: embed}
}

// Migrate executes the schema DDL, creating the context_chunks table and HNSW
// index if they do not already exist. The vector column dimension is taken
// from the embeddings provider.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(schemaTemplate, s.embed.Dimensions())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("retrieval: migrate: %w", err)
	}
	return nil
}

// Retrieve implements [retrieval.Retriever]. It embeds query and returns the
// k nearest chunks by cosine distance, most similar first.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]retrieval.ContextChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	const q = `
		SELECT content, source_url, publisher, retrieved_at, COALESCE(as_of, 'epoch'::timestamptz)
		FROM   context_chunks
		ORDER  BY embedding <=> $1
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	chunks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (retrieval.ContextChunk, error) {
		var c retrieval.ContextChunk
		if err := row.Scan(&c.Text, &c.SourceURL, &c.Publisher, &c.RetrievedAt, &c.AsOf); err != nil {
			return retrieval.ContextChunk{}, err
		}
		if c.AsOf.Unix() == 0 {
			c.AsOf = time.Time{}
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: collect rows: %w", err)
	}
	return chunks, nil
}

// Index embeds and upserts a single chunk of source material.
func (s *Store) Index(ctx context.Context, chunk retrieval.ContextChunk) error {
	vec, err := s.embed.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("retrieval: embed chunk: %w", err)
	}
	return s.insert(ctx, chunk, vec)
}

// IndexBatch embeds and upserts several chunks in one embeddings call.
func (s *Store) IndexBatch(ctx context.Context, chunks []retrieval.ContextChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("retrieval: embed batch: %w", err)
	}
	for i, c := range chunks {
		if err := s.insert(ctx, c, vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insert(ctx context.Context, chunk retrieval.ContextChunk, vec []float32) error {
	const q = `
		INSERT INTO context_chunks (id, content, embedding, source_url, publisher, retrieved_at, as_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    content      = EXCLUDED.content,
		    embedding    = EXCLUDED.embedding,
		    source_url   = EXCLUDED.source_url,
		    publisher    = EXCLUDED.publisher,
		    retrieved_at = EXCLUDED.retrieved_at,
		    as_of        = EXCLUDED.as_of`

	var asOf any
	if !chunk.AsOf.IsZero() {
		asOf = chunk.AsOf
	}
	retrievedAt := chunk.RetrievedAt
	if retrievedAt.IsZero() {
		retrievedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q,
		uuid.NewString(),
		chunk.Text,
		pgvector.NewVector(vec),
		chunk.SourceURL,
		chunk.Publisher,
		retrievedAt,
		asOf,
	)
	if err != nil {
		return fmt.Errorf("retrieval: index chunk: %w", err)
	}
	return nil
}
