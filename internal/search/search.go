// Package search implements retrieval over indexed chunks: vector similarity
// through pgvector, lexical ranking through Postgres full text search, and
// reciprocal rank fusion to merge result lists.
package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/doclens-ai/doclens/internal/storage"
)

// Hit is one retrieved chunk with its retrieval score.
type Hit struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Filename   string    `json:"filename"`
	Score      float64   `json:"score"`
}

// Searcher runs retrieval queries against the chunk store.
type Searcher struct {
	db storage.DB
}

// NewSearcher creates a searcher over the given database handle.
func NewSearcher(db storage.DB) *Searcher {
	return &Searcher{db: db}
}

// Vector returns the topK chunks closest to the query vector by cosine
// distance, scoped to the owner's ready documents. Score is cosine
// similarity, 1 - distance.
func (s *Searcher) Vector(ctx context.Context, ownerID string, queryVec []float32, topK int) ([]Hit, error) {
	if topK < 1 {
		topK = 5
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, d.filename,
			1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = $2 AND d.status = 'ready' AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(queryVec), ownerID, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// Lexical returns the topK chunks ranked by full text relevance using the
// language-agnostic 'simple' configuration.
func (s *Searcher) Lexical(ctx context.Context, ownerID, query string, topK int) ([]Hit, error) {
	if topK < 1 {
		topK = 5
	}

	sqlQuery := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, d.filename,
			ts_rank(to_tsvector('simple', c.content), plainto_tsquery('simple', $1)) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = $2 AND d.status = 'ready'
			AND to_tsvector('simple', c.content) @@ plainto_tsquery('simple', $1)
		ORDER BY score DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, query, ownerID, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// Hybrid runs vector and lexical retrieval for the same query and fuses the
// two lists with RRF.
func (s *Searcher) Hybrid(ctx context.Context, ownerID, query string, queryVec []float32, topK int) ([]Hit, error) {
	vectorHits, err := s.Vector(ctx, ownerID, queryVec, topK)
	if err != nil {
		return nil, err
	}
	lexicalHits, err := s.Lexical(ctx, ownerID, query, topK)
	if err != nil {
		return nil, err
	}

	fused := FuseRRF([][]Hit{vectorHits, lexicalHits}, DefaultRRFK)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanHits(rows rowScanner) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(
			&hit.ChunkID, &hit.DocumentID, &hit.ChunkIndex,
			&hit.Content, &hit.Filename, &hit.Score,
		); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
