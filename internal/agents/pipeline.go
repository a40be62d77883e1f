package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doclens-ai/doclens/internal/cache"
	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/llm"
	"github.com/doclens-ai/doclens/internal/observability"
	"github.com/doclens-ai/doclens/internal/search"
)

// Answer loop bounds.
const (
	topKStep    = 5
	topKCeiling = 20
)

// Retriever runs one hybrid retrieval. *search.Searcher implements it.
type Retriever interface {
	Hybrid(ctx context.Context, ownerID, query string, queryVec []float32, topK int) ([]search.Hit, error)
}

// Result is the outcome of one answered query.
type Result struct {
	Answer    string       `json:"answer"`
	Citations []search.Hit `json:"citations"`
	Query     string       `json:"query"`
	Verdict   Verdict      `json:"verdict"`
	Summary   string       `json:"summary,omitempty"`
	Cached    bool         `json:"cached,omitempty"`
}

// Options configures the answer pipeline.
type Options struct {
	TopK          int
	Rewrites      int
	Strictness    string
	MaxIterations int
	Summarize     bool
	CacheTTL      time.Duration
}

// RAGPipeline orchestrates retrieval and generation into grounded answers.
type RAGPipeline struct {
	searcher  Retriever
	embedder  embedding.Embedder
	planner   *Planner
	rewriter  *Rewriter
	generator *Generator
	judge     *Judge
	summarize *Summarizer
	answers   cache.Client
	logger    *observability.Logger
	opts      Options
}

// NewRAGPipeline creates the answer pipeline. answers may be nil to disable
// caching.
func NewRAGPipeline(
	searcher Retriever,
	embedder embedding.Embedder,
	completer llm.Completer,
	answers cache.Client,
	logger *observability.Logger,
	opts Options,
) (*RAGPipeline, error) {
	if completer == nil {
		return nil, errors.New("chat model is not configured")
	}
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.TopK < 1 {
		opts.TopK = 5
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 2
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	return &RAGPipeline{
		searcher:  searcher,
		embedder:  embedder,
		planner:   NewPlanner(opts.Rewrites),
		rewriter:  NewRewriter(completer),
		generator: NewGenerator(completer),
		judge:     NewJudge(completer, opts.Strictness),
		summarize: NewSummarizer(completer),
		answers:   answers,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Ask answers a query against the owner's indexed documents. The judge can
// request up to two retrieval expansions; earlier result sets stay in the
// fusion so expansion never loses recall.
func (p *RAGPipeline) Ask(ctx context.Context, ownerID, query string, topK int) (*Result, error) {
	if topK < 1 {
		topK = p.opts.TopK
	}

	log := p.logger.WithOwner(ownerID).WithContext(ctx)

	cacheKey := cache.AnswerKey(ownerID, query, topK)
	if p.answers != nil {
		if data, err := p.answers.Get(ctx, cacheKey); err == nil {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.Cached = true
				log.Debug().Str("query", query).Msg("answer served from cache")
				return &cached, nil
			}
		}
	}

	plan := p.planner.Plan(query)

	queries := []string{query}
	queries = append(queries, p.rewriter.Rewrite(ctx, query, plan.Rewrites)...)

	resultSets, err := p.retrieve(ctx, ownerID, queries, topK)
	if err != nil {
		return nil, err
	}

	merged := search.FuseRRF(resultSets, search.DefaultRRFK)
	hits := truncate(merged, topK)

	answer, err := p.generator.Generate(ctx, query, hits)
	if err != nil {
		return nil, err
	}
	verdict := p.judge.Evaluate(ctx, query, answer, hits)

	currentK := topK
	for iteration := 0; verdict.NeedsMore && iteration < p.opts.MaxIterations; iteration++ {
		currentK = min(currentK+topKStep, topKCeiling)
		log.Debug().
			Int("iteration", iteration+1).
			Int("top_k", currentK).
			Str("reason", verdict.Reason).
			Msg("judge requested more context")

		extraSets, err := p.retrieve(ctx, ownerID, queries, currentK)
		if err != nil {
			return nil, err
		}
		resultSets = append(resultSets, extraSets...)

		merged = search.FuseRRF(resultSets, search.DefaultRRFK)
		hits = truncate(merged, currentK)

		if answer, err = p.generator.Generate(ctx, query, hits); err != nil {
			return nil, err
		}
		verdict = p.judge.Evaluate(ctx, query, answer, hits)
	}

	result := &Result{
		Answer:    answer,
		Citations: hits,
		Query:     query,
		Verdict:   verdict,
	}
	if p.opts.Summarize {
		result.Summary = p.summarize.Summarize(ctx, answer)
	}

	if p.answers != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := p.answers.Set(ctx, cacheKey, data, p.opts.CacheTTL); err != nil {
				log.Warn().Err(err).Msg("cache answer")
			}
		}
	}

	return result, nil
}

// InvalidateOwner drops the owner's cached answers. Call it whenever the
// owner's document set changes.
func (p *RAGPipeline) InvalidateOwner(ctx context.Context, ownerID string) {
	if p.answers == nil {
		return
	}
	if err := p.answers.DeleteByPrefix(ctx, "answer:"+ownerID+":"); err != nil {
		p.logger.WithOwner(ownerID).Warn().Err(err).Msg("invalidate answer cache")
	}
}

// retrieve runs a hybrid search for every query variant concurrently. The
// returned sets keep the order of the queries.
func (p *RAGPipeline) retrieve(ctx context.Context, ownerID string, queries []string, topK int) ([][]search.Hit, error) {
	sets := make([][]search.Hit, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			vec, err := p.embedder.EmbedSingle(ctx, q)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			hits, err := p.searcher.Hybrid(ctx, ownerID, q, vec, topK)
			if err != nil {
				return err
			}
			sets[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

func truncate(hits []search.Hit, n int) []search.Hit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}
