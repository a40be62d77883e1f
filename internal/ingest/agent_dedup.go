package ingest

import (
	"context"
)

// DedupAgent marks near-duplicate chunks using MinHash signatures verified
// through LSH banding. The earliest occurrence of a duplicate group survives;
// later chunks carry the content hash of the survivor.
type DedupAgent struct {
	threshold float64
}

// NewDedupAgent creates the deduplication agent.
func NewDedupAgent(threshold float64) *DedupAgent {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &DedupAgent{threshold: threshold}
}

func (a *DedupAgent) Name() string           { return "dedup" }
func (a *DedupAgent) Dependencies() []string { return []string{"structure"} }
func (a *DedupAgent) Required() []string     { return []string{"structure"} }

// Process flags duplicates among the chunks.
func (a *DedupAgent) Process(ctx context.Context, ic *Context) error {
	if len(ic.Chunks) == 0 {
		return nil
	}

	signatures := make([][]uint64, len(ic.Chunks))
	texts := make([]string, len(ic.Chunks))
	for i, chunk := range ic.Chunks {
		signatures[i] = MinHashSignature(chunk.Text)
		texts[i] = chunk.Text
	}

	duplicates := FindDuplicates(signatures, texts, a.threshold)

	for idx, hash := range duplicates {
		ic.Chunks[idx].IsDuplicate = true
		ic.Chunks[idx].DeduplicatedWith = hash
	}

	ic.SetMetric("duplicate_chunks", len(duplicates))
	ic.SetMetric("unique_chunks", len(ic.Chunks)-len(duplicates))
	return nil
}
