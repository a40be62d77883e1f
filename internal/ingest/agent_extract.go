package ingest

import (
	"context"
	"fmt"

	"github.com/doclens-ai/doclens/internal/extract"
)

// ExtractAgent pulls raw text, blocks, and tables out of the uploaded file.
// It is the DAG root and a critical agent.
type ExtractAgent struct {
	extractor *extract.Extractor
}

// NewExtractAgent creates the extraction agent.
func NewExtractAgent(extractor *extract.Extractor) *ExtractAgent {
	return &ExtractAgent{extractor: extractor}
}

func (a *ExtractAgent) Name() string           { return "extract" }
func (a *ExtractAgent) Dependencies() []string { return nil }
func (a *ExtractAgent) Required() []string     { return nil }

// Process extracts the file contents into the shared context.
func (a *ExtractAgent) Process(ctx context.Context, ic *Context) error {
	res, err := a.extractor.Extract(ctx, ic.FilePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", ic.Filename, err)
	}

	ic.RawText = res.RawText
	ic.Blocks = res.Blocks
	ic.Tables = res.Tables
	for _, msg := range res.Errors {
		ic.AddError(msg)
	}

	ic.SetMetric("extracted_blocks", len(res.Blocks))
	ic.SetMetric("extracted_tables", len(res.Tables))
	ic.SetMetric("raw_text_length", len(res.RawText))
	return nil
}
