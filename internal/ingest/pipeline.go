package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/extract"
	"github.com/doclens-ai/doclens/internal/llm"
	"github.com/doclens-ai/doclens/internal/observability"
	"github.com/doclens-ai/doclens/internal/storage"
)

// Options configures a pipeline.
type Options struct {
	ChunkSize          int
	ChunkOverlap       int
	DedupeThreshold    float64
	EmbeddingBatchSize int
}

// Pipeline wires the ingestion DAG to storage and tracks document and job
// state across a run.
type Pipeline struct {
	repos     *storage.Repositories
	extractor *extract.Extractor
	embedder  embedding.Embedder
	completer llm.Completer
	logger    *observability.Logger
	opts      Options
}

// NewPipeline creates an ingestion pipeline. completer may be nil, which
// switches the structure, meta, and table agents to heuristic mode.
func NewPipeline(
	repos *storage.Repositories,
	extractor *extract.Extractor,
	embedder embedding.Embedder,
	completer llm.Completer,
	logger *observability.Logger,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{
		repos:     repos,
		extractor: extractor,
		embedder:  embedder,
		completer: completer,
		logger:    logger,
		opts:      opts,
	}
}

// RunReport summarizes one completed ingestion run.
type RunReport struct {
	Results []AgentResult          `json:"results"`
	Errors  []string               `json:"errors,omitempty"`
	Meta    map[string]interface{} `json:"meta"`
}

// Run ingests one stored document end to end. The document transitions
// pending -> processing -> ready, or to error when a critical agent fails.
func (p *Pipeline) Run(ctx context.Context, doc *storage.Document) (*RunReport, error) {
	log := p.logger.WithDocument(doc.ID.String()).WithOwner(doc.OwnerID)
	log.Info().Str("filename", doc.Filename).Msg("ingestion started")
	start := time.Now()

	if err := p.repos.Documents.UpdateStatus(ctx, doc.ID, storage.DocumentStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark document processing: %w", err)
	}

	job := &storage.IngestJob{DocumentID: doc.ID, Status: storage.JobStatusRunning}
	if err := p.repos.Jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}

	ic := NewContext(doc.ID, doc.OwnerID, doc.Path, doc.Filename)
	dag := p.buildDAG()

	results, runErr := dag.Execute(ctx, ic)

	report := &RunReport{
		Results: results,
		Errors:  ic.Errors(),
		Meta:    p.documentMeta(ic),
	}
	jobLogs := storage.JSONMap{
		"agents": results,
		"logs":   ic.Logs(),
		"errors": ic.Errors(),
	}

	if runErr != nil {
		_ = p.repos.Documents.UpdateStatus(ctx, doc.ID, storage.DocumentStatusError)
		_ = p.repos.Jobs.Finish(ctx, job.ID, storage.JobStatusFailed, runErr.Error(), jobLogs)
		log.Error().Err(runErr).Dur("duration", time.Since(start)).Msg("ingestion failed")

		if errors.Is(runErr, ErrCritical) || errors.Is(runErr, ErrDAGStuck) {
			return report, runErr
		}
		return report, fmt.Errorf("ingestion run: %w", runErr)
	}

	if err := p.repos.Documents.UpdateMeta(ctx, doc.ID, report.Meta); err != nil {
		log.Warn().Err(err).Msg("store document metadata")
	}
	if err := p.repos.Documents.UpdateStatus(ctx, doc.ID, storage.DocumentStatusReady); err != nil {
		return report, fmt.Errorf("mark document ready: %w", err)
	}
	if err := p.repos.Jobs.Finish(ctx, job.ID, storage.JobStatusSucceeded, "", jobLogs); err != nil {
		log.Warn().Err(err).Msg("finish ingest job")
	}

	log.Info().
		Int("chunks", len(ic.Chunks)).
		Dur("duration", time.Since(start)).
		Msg("ingestion completed")
	return report, nil
}

func (p *Pipeline) buildDAG() *DAG {
	dag := NewDAG(p.logger)
	dag.Add(NewExtractAgent(p.extractor))
	dag.Add(NewStructureAgent(p.completer, p.opts.ChunkSize, p.opts.ChunkOverlap))
	dag.Add(NewMetaAgent(p.completer))
	dag.Add(NewTableAgent(p.completer))
	dag.Add(NewDedupAgent(p.opts.DedupeThreshold))
	dag.Add(NewPolicyAgent())
	dag.Add(NewIndexAgent(p.repos, p.embedder, p.opts.EmbeddingBatchSize))
	return dag
}

// documentMeta collects the metadata stored on the document after a run.
func (p *Pipeline) documentMeta(ic *Context) storage.JSONMap {
	meta := storage.JSONMap{
		"doc_type":            ic.DocType,
		"chunk_count":         len(ic.Chunks),
		"entity_count":        len(ic.Entities),
		"raw_text_length":     len(ic.RawText),
		"embedding_model":     p.embedder.Model(),
		"embedding_dimension": p.embedder.Dimension(),
	}
	if v, ok := ic.Metric("indexed_chunks"); ok {
		meta["indexed_chunks"] = v
	}
	if v, ok := ic.Metric("duplicate_chunks"); ok {
		meta["duplicate_chunks"] = v
	}
	for k, v := range ic.Metadata() {
		meta[k] = v
	}
	return meta
}
