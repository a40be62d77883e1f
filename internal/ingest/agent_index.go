package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/storage"
)

// IndexAgent embeds unique chunks and writes them to the store. Embedding
// batches fail independently; chunks from a failed batch are skipped. All
// inserts for a document go through one transaction, replacing any chunks
// from a previous ingestion.
type IndexAgent struct {
	repos     *storage.Repositories
	embedder  embedding.Embedder
	batchSize int
}

// NewIndexAgent creates the indexing agent.
func NewIndexAgent(repos *storage.Repositories, embedder embedding.Embedder, batchSize int) *IndexAgent {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &IndexAgent{repos: repos, embedder: embedder, batchSize: batchSize}
}

func (a *IndexAgent) Name() string { return "index" }

func (a *IndexAgent) Dependencies() []string {
	return []string{"extract", "structure", "meta", "table", "dedup", "policy"}
}

// Required: a document with failed metadata or table agents is still
// indexable; one without extracted or chunked text is not.
func (a *IndexAgent) Required() []string { return []string{"extract", "structure"} }

// Process embeds and persists the unique chunks.
func (a *IndexAgent) Process(ctx context.Context, ic *Context) error {
	if len(ic.Chunks) == 0 {
		ic.AddError("no chunks to index")
		return nil
	}

	var unique []*ProcessedChunk
	for i := range ic.Chunks {
		if !ic.Chunks[i].IsDuplicate {
			unique = append(unique, &ic.Chunks[i])
		}
	}
	if len(unique) == 0 {
		ic.AddError("all chunks are duplicates")
		return nil
	}

	a.generateEmbeddings(ctx, unique, ic)

	inserted, err := a.insertChunks(ctx, unique, ic)
	if err != nil {
		return err
	}

	// Refresh planner statistics. Not critical if it fails.
	_ = a.repos.Chunks.Analyze(ctx)

	ic.SetMetric("indexed_chunks", inserted)
	ic.SetMetric("duplicate_chunks_skipped", len(ic.Chunks)-len(unique))
	return nil
}

func (a *IndexAgent) generateEmbeddings(ctx context.Context, chunks []*ProcessedChunk, ic *Context) {
	totalBatches := (len(chunks) + a.batchSize - 1) / a.batchSize

	for batch := 0; batch < totalBatches; batch++ {
		start := batch * a.batchSize
		end := start + a.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		embeddings, err := a.embedder.Embed(ctx, texts)
		if err != nil {
			ic.AddError(fmt.Sprintf("embedding batch %d: %v", batch, err))
			ic.AddLog(a.Name(), "warn", fmt.Sprintf("embedding batch %d/%d failed, skipping", batch+1, totalBatches))
			continue
		}

		for i, chunk := range chunks[start:end] {
			chunk.Embedding = embeddings[i]
		}
		ic.AddLog(a.Name(), "info", fmt.Sprintf("embedding batch %d/%d: %d vectors", batch+1, totalBatches, end-start))
	}
}

func (a *IndexAgent) insertChunks(ctx context.Context, chunks []*ProcessedChunk, ic *Context) (int, error) {
	inserted := 0

	err := a.repos.WithTx(ctx, func(tx *sql.Tx) error {
		if err := a.repos.Chunks.DeleteByDocument(ctx, tx, ic.DocumentID); err != nil {
			return fmt.Errorf("clear previous chunks: %w", err)
		}

		for _, chunk := range chunks {
			if chunk.Embedding == nil {
				continue
			}

			meta := storage.JSONMap{
				"char_count":      len(chunk.Text),
				"embedding_model": a.embedder.Model(),
			}
			for k, v := range chunk.Meta {
				meta[k] = v
			}
			if a.embedder.Model() == embedding.DevModel {
				meta["embedding_provenance"] = embedding.DevModel
			}

			row := &storage.DocumentChunk{
				DocumentID: ic.DocumentID,
				ChunkIndex: chunk.ChunkIndex,
				Content:    chunk.Text,
				Meta:       meta,
				Embedding:  pgvector.NewVector(chunk.Embedding),
			}
			if err := a.repos.Chunks.Insert(ctx, tx, row); err != nil {
				return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("index commit: %w", err)
	}

	ic.AddLog(a.Name(), "success", fmt.Sprintf("%d chunks written", inserted))
	return inserted, nil
}
