package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/doclens-ai/doclens/internal/extract"
	"github.com/doclens-ai/doclens/internal/llm"
)

// StructureAgent segments the document and cuts it into overlapping chunks.
// With a completer it asks the model for the structure of a sample; without
// one, or on model failure, it falls back to formatting heuristics.
type StructureAgent struct {
	completer    llm.Completer
	chunkSize    int
	chunkOverlap int
}

// NewStructureAgent creates the structuring agent. completer may be nil.
func NewStructureAgent(completer llm.Completer, chunkSize, chunkOverlap int) *StructureAgent {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 200
	}
	return &StructureAgent{
		completer:    completer,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

func (a *StructureAgent) Name() string           { return "structure" }
func (a *StructureAgent) Dependencies() []string { return []string{"extract"} }
func (a *StructureAgent) Required() []string     { return []string{"extract"} }

// Process builds segments and chunks from the extracted blocks.
func (a *StructureAgent) Process(ctx context.Context, ic *Context) error {
	if len(ic.Blocks) == 0 {
		ic.AddError("no extracted blocks to structure")
		return nil
	}

	if a.completer != nil {
		if err := a.llmSegmentation(ctx, ic); err != nil {
			ic.AddError(fmt.Sprintf("llm segmentation: %v, falling back to heuristics", err))
			a.heuristicSegmentation(ic)
		}
	} else {
		a.heuristicSegmentation(ic)
	}

	a.createChunks(ic)

	ic.SetMetric("segments", len(ic.Segments))
	ic.SetMetric("chunks_created", len(ic.Chunks))
	return nil
}

type llmSegment struct {
	Type    string `json:"type"`
	Level   int    `json:"level"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

type llmSegmentation struct {
	Segments []llmSegment `json:"segments"`
}

func (a *StructureAgent) llmSegmentation(ctx context.Context, ic *Context) error {
	sampleBlocks := ic.Blocks
	if len(sampleBlocks) > 10 {
		sampleBlocks = sampleBlocks[:10]
	}
	parts := make([]string, 0, len(sampleBlocks))
	for _, b := range sampleBlocks {
		parts = append(parts, b.Text)
	}
	sample := strings.Join(parts, "\n\n")
	if len(sample) > 3000 {
		sample = sample[:3000]
	}

	prompt := fmt.Sprintf(`Analyze the following document text and identify its structure:

%s

Respond with JSON:
{
  "segments": [
    {"type": "heading|section|paragraph", "level": 0-3, "text": "...", "summary": "..."}
  ]
}

Rules:
- Detect headings and their hierarchy level (1=main, 2=subheading, 3=section)
- Group paragraphs into sections
- Summarize each segment in one or two sentences`, sample)

	outs, err := a.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return err
	}

	var parsed llmSegmentation
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &parsed); err != nil {
		return fmt.Errorf("parse segmentation response: %w", err)
	}
	if len(parsed.Segments) == 0 {
		return fmt.Errorf("empty segmentation response")
	}

	for _, seg := range parsed.Segments {
		segType := seg.Type
		if segType == "" {
			segType = "paragraph"
		}
		ic.Segments = append(ic.Segments, Segment{
			Text:  seg.Text,
			Type:  segType,
			Level: seg.Level,
			Meta:  map[string]interface{}{"summary": seg.Summary, "source": "llm"},
		})
	}
	return nil
}

func (a *StructureAgent) heuristicSegmentation(ic *Context) {
	for _, block := range ic.Blocks {
		level := 0
		segType := "paragraph"

		switch {
		case block.Type == extract.BlockHeading:
			segType = "heading"
			level = 1
		case isHeading(block.Text):
			segType = "heading"
			level = headingLevel(block.Text)
		case block.Type == extract.BlockTable:
			segType = "table"
		case len(block.Text) < 50 && block.Text == strings.ToUpper(block.Text) && hasLetter(block.Text):
			// Short all-caps text is likely a heading.
			segType = "heading"
			level = 2
		}

		ic.Segments = append(ic.Segments, Segment{
			Text:  block.Text,
			Type:  segType,
			Level: level,
			Meta:  map[string]interface{}{"source": "heuristic", "block_type": string(block.Type)},
		})
	}
}

var (
	bulletRE       = regexp.MustCompile(`^(\d+\.|\d+\)|\*|-|•)`)
	headingLevelRE = regexp.MustCompile(`^(\d+)(\.\d+)*`)
	sentenceEndRE  = regexp.MustCompile(`[.!?]\s+`)
)

func isHeading(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) > 100 {
		return false
	}
	if strings.HasSuffix(text, ".") {
		return false
	}
	if bulletRE.MatchString(text) {
		return true
	}
	return isTitleCase(text)
}

func headingLevel(text string) int {
	match := headingLevelRE.FindString(strings.TrimSpace(text))
	if match != "" {
		dots := strings.Count(match, ".")
		if dots+1 < 3 {
			return dots + 1
		}
		return 3
	}
	return 1
}

func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	for _, word := range words {
		runes := []rune(word)
		if !unicode.IsUpper(runes[0]) && !unicode.IsDigit(runes[0]) {
			return false
		}
	}
	return true
}

func hasLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// createChunks greedily packs sentences into chunks of at most chunkSize
// characters, carrying a sentence-aligned overlap tail between chunks.
func (a *StructureAgent) createChunks(ic *Context) {
	parts := make([]string, 0, len(ic.Segments))
	for _, seg := range ic.Segments {
		parts = append(parts, seg.Text)
	}
	fullText := strings.Join(parts, "\n\n")

	if strings.TrimSpace(fullText) == "" {
		ic.AddError("no text to chunk")
		return
	}

	sentences := splitSentences(fullText)

	current := ""
	chunkIndex := 0

	flush := func() {
		text := strings.TrimSpace(current)
		if text == "" {
			return
		}
		ic.Chunks = append(ic.Chunks, ProcessedChunk{
			Text:       text,
			ChunkIndex: chunkIndex,
			Meta:       map[string]interface{}{"char_count": len(current), "source": "structure"},
		})
		chunkIndex++
	}

	for _, sentence := range sentences {
		if len(current)+len(sentence) > a.chunkSize && current != "" {
			flush()
			current = a.overlapTail(current) + " " + sentence
		} else if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	flush()
}

// splitSentences splits on sentence-ending punctuation followed by whitespace,
// keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEndRE.FindAllStringIndex(text, -1) {
		// loc[0] is the punctuation mark; keep it, drop the whitespace.
		sentence := strings.TrimSpace(text[last : loc[0]+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// overlapTail takes the trailing overlap window of a chunk and advances it
// past the first sentence boundary so the next chunk starts cleanly.
func (a *StructureAgent) overlapTail(text string) string {
	if len(text) <= a.chunkOverlap {
		return text
	}
	overlap := text[len(text)-a.chunkOverlap:]
	if loc := sentenceEndRE.FindStringIndex(overlap); loc != nil {
		return overlap[loc[1]:]
	}
	return overlap
}
