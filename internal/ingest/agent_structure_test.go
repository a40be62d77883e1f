package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-ai/doclens/internal/extract"
	"github.com/doclens-ai/doclens/internal/llm"
)

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First sentence. Second one! Is this third? Trailing tail")

	require.Len(t, sentences, 4)
	assert.Equal(t, "First sentence.", sentences[0])
	assert.Equal(t, "Second one!", sentences[1])
	assert.Equal(t, "Is this third?", sentences[2])
	assert.Equal(t, "Trailing tail", sentences[3])
}

func TestSplitSentences_NoBoundary(t *testing.T) {
	sentences := splitSentences("no punctuation at all")
	require.Len(t, sentences, 1)
	assert.Equal(t, "no punctuation at all", sentences[0])
}

func TestStructureAgent_CreateChunks_RespectsSize(t *testing.T) {
	agent := NewStructureAgent(nil, 120, 40)

	ic := testContext()
	sentence := "Every clause in this agreement has a number and a short title."
	for i := 0; i < 6; i++ {
		ic.Segments = append(ic.Segments, Segment{Text: sentence, Type: "paragraph"})
	}

	agent.createChunks(ic)

	require.Greater(t, len(ic.Chunks), 1)
	for i, chunk := range ic.Chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Text)
	}
	// The greedy packer only exceeds the limit when a single sentence does.
	for _, chunk := range ic.Chunks[:len(ic.Chunks)-1] {
		assert.LessOrEqual(t, len(chunk.Text), 120+len(sentence))
	}
}

func TestStructureAgent_CreateChunks_Overlap(t *testing.T) {
	agent := NewStructureAgent(nil, 100, 30)

	ic := testContext()
	ic.Segments = []Segment{
		{Text: "The first section describes the intake process in detail. " +
			"The second section lists responsibilities of each party. " +
			"The third section covers termination and notice periods.", Type: "paragraph"},
	}

	agent.createChunks(ic)
	require.Greater(t, len(ic.Chunks), 1)

	// Each later chunk starts with carried-over text from its predecessor.
	for i := 1; i < len(ic.Chunks); i++ {
		head := strings.Fields(ic.Chunks[i].Text)[0]
		assert.Contains(t, ic.Chunks[i-1].Text, head)
	}
}

func TestStructureAgent_Process_HeuristicMode(t *testing.T) {
	agent := NewStructureAgent(nil, 1000, 200)

	ic := testContext()
	ic.Blocks = []extract.TextBlock{
		{Text: "ANNUAL REPORT", Type: extract.BlockParagraph},
		{Text: "1. Introduction", Type: extract.BlockParagraph},
		{Text: "This report summarizes the operations of the company during the last fiscal year. " +
			"It covers revenue, costs, and headcount.", Type: extract.BlockParagraph},
	}

	require.NoError(t, agent.Process(context.Background(), ic))

	require.Len(t, ic.Segments, 3)
	assert.Equal(t, "heading", ic.Segments[0].Type, "short all-caps text is a heading")
	assert.Equal(t, "heading", ic.Segments[1].Type, "numbered line is a heading")
	assert.Equal(t, "paragraph", ic.Segments[2].Type)
	assert.NotEmpty(t, ic.Chunks)

	segments, ok := ic.Metric("segments")
	require.True(t, ok)
	assert.Equal(t, 3, segments)
}

func TestStructureAgent_Process_LLMFallback(t *testing.T) {
	completer := &llm.MockCompleter{Err: errors.New("model unavailable")}
	agent := NewStructureAgent(completer, 1000, 200)

	ic := testContext()
	ic.Blocks = []extract.TextBlock{
		{Text: "A plain paragraph of text that should still be chunked.", Type: extract.BlockParagraph},
	}

	require.NoError(t, agent.Process(context.Background(), ic))

	assert.NotEmpty(t, ic.Segments, "heuristics take over when the model fails")
	assert.NotEmpty(t, ic.Chunks)
	assert.NotEmpty(t, ic.Errors())
}

func TestStructureAgent_Process_LLMSegmentation(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		`{"segments":[{"type":"heading","level":1,"text":"Overview","summary":"intro"},` +
			`{"type":"paragraph","level":0,"text":"The service processes uploads nightly.","summary":"schedule"}]}`,
	}}
	agent := NewStructureAgent(completer, 1000, 200)

	ic := testContext()
	ic.Blocks = []extract.TextBlock{{Text: "Overview. The service processes uploads nightly.", Type: extract.BlockParagraph}}

	require.NoError(t, agent.Process(context.Background(), ic))

	require.Len(t, ic.Segments, 2)
	assert.Equal(t, "heading", ic.Segments[0].Type)
	assert.Equal(t, "llm", ic.Segments[0].Meta["source"])
}

func TestStructureAgent_Process_NoBlocks(t *testing.T) {
	agent := NewStructureAgent(nil, 1000, 200)
	ic := testContext()

	require.NoError(t, agent.Process(context.Background(), ic))
	assert.Empty(t, ic.Chunks)
	assert.NotEmpty(t, ic.Errors())
}

func TestIsHeading(t *testing.T) {
	assert.True(t, isHeading("2. Payment Terms"))
	assert.True(t, isHeading("Quarterly Revenue Summary"))
	assert.False(t, isHeading("This is a normal sentence that ends with a period."))
	assert.False(t, isHeading(strings.Repeat("very long heading ", 10)))
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("3 Scope"))
	assert.Equal(t, 2, headingLevel("3.1 Definitions"))
	assert.Equal(t, 3, headingLevel("3.1.2.4 Details"))
	assert.Equal(t, 1, headingLevel("Untitled"))
}
