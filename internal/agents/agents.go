// Package agents implements the answer-generation loop: planning, query
// rewriting, context-grounded generation, answer judging, and summarization.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doclens-ai/doclens/internal/llm"
	"github.com/doclens-ai/doclens/internal/search"
)

// Plan describes the retrieval strategy for one query.
type Plan struct {
	UseRAG   bool `json:"use_rag"`
	Rewrites int  `json:"rewrites"`
}

// Planner decides the retrieval strategy. Every query currently goes through
// retrieval with a configurable number of rewrites.
type Planner struct {
	rewrites int
}

// NewPlanner creates a planner.
func NewPlanner(rewrites int) *Planner {
	if rewrites < 0 {
		rewrites = 0
	}
	return &Planner{rewrites: rewrites}
}

// Plan returns the strategy for the query.
func (p *Planner) Plan(query string) Plan {
	return Plan{UseRAG: true, Rewrites: p.rewrites}
}

// Rewriter produces alternative phrasings of the user query to widen recall.
type Rewriter struct {
	completer llm.Completer
}

// NewRewriter creates a rewriter.
func NewRewriter(completer llm.Completer) *Rewriter {
	return &Rewriter{completer: completer}
}

// Rewrite returns up to n query variants. Failures degrade to no variants
// rather than failing the request.
func (r *Rewriter) Rewrite(ctx context.Context, query string, n int) []string {
	if n < 1 || r.completer == nil {
		return nil
	}

	prompt := fmt.Sprintf(`Rephrase the following search query in %d different ways that preserve its meaning. Use the same language as the query.

QUERY:
%s

Respond with JSON:
{"rewrites": ["...", "..."]}`, n, query)

	outs, err := r.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return nil
	}

	var parsed struct {
		Rewrites []string `json:"rewrites"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &parsed); err != nil {
		return nil
	}

	var rewrites []string
	for _, rw := range parsed.Rewrites {
		rw = strings.TrimSpace(rw)
		if rw != "" && rw != query {
			rewrites = append(rewrites, rw)
		}
		if len(rewrites) == n {
			break
		}
	}
	return rewrites
}

// Generator produces the final answer grounded in retrieved chunks.
type Generator struct {
	completer llm.Completer
}

// NewGenerator creates a generator.
func NewGenerator(completer llm.Completer) *Generator {
	return &Generator{completer: completer}
}

// chunkTruncation limits how much of each chunk enters the prompt.
const chunkTruncation = 1200

// BuildPrompt renders the answer prompt from the query and context chunks.
func BuildPrompt(query string, hits []search.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		content := hit.Content
		if len(content) > chunkTruncation {
			content = content[:chunkTruncation]
		}
		parts = append(parts, content)
	}
	contextText := strings.Join(parts, "\n\n---\n")

	return fmt.Sprintf(
		"Answer the question precisely using only information from the CONTEXT. "+
			"If there is not enough information, say so explicitly and do not make anything up. "+
			"Answer in the language of the question.\n\n"+
			"QUESTION:\n%s\n\nCONTEXT:\n%s\n\n"+
			"Return a clear, concise answer and do not introduce facts beyond the context.",
		query, contextText)
}

// Generate produces the answer text.
func (g *Generator) Generate(ctx context.Context, query string, hits []search.Hit) (string, error) {
	outs, err := g.completer.Complete(ctx, BuildPrompt(query, hits), 1)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(outs[0]), nil
}

// Verdict is the judge's evaluation of an answer.
type Verdict struct {
	OK        bool   `json:"ok"`
	NeedsMore bool   `json:"needs_more"`
	Reason    string `json:"reason,omitempty"`
}

// Judge evaluates whether the generated answer is grounded and sufficient.
type Judge struct {
	completer  llm.Completer
	strictness string
}

// NewJudge creates a judge. strictness accepts "low", "medium", or "high",
// along with the aliases "lenient", "normal", and "strict". Anything else
// falls back to medium.
func NewJudge(completer llm.Completer, strictness string) *Judge {
	switch strictness {
	case "low", "lenient":
		strictness = "lenient"
	case "high", "strict":
		strictness = "strict"
	default:
		strictness = "normal"
	}
	return &Judge{completer: completer, strictness: strictness}
}

// Evaluate judges the answer. On model or parse failure it accepts the
// answer, so a flaky judge never blocks a response.
func (j *Judge) Evaluate(ctx context.Context, query, answer string, hits []search.Hit) Verdict {
	if j.completer == nil {
		return Verdict{OK: true}
	}

	var contextNote string
	switch j.strictness {
	case "strict":
		contextNote = "Be strict: any unsupported claim or partial answer means the answer is not ok."
	case "lenient":
		contextNote = "Be lenient: accept the answer unless it is clearly wrong or unsupported."
	default:
		contextNote = "Flag the answer only when it is unsupported by the context or clearly incomplete."
	}

	prompt := fmt.Sprintf(`Evaluate the following answer to a question, given the retrieved context snippets.

QUESTION:
%s

ANSWER:
%s

CONTEXT SNIPPET COUNT: %d

%s

Respond with JSON:
{"ok": true|false, "needs_more": true|false, "reason": "..."}

Set needs_more to true only when retrieving more context could plausibly improve the answer.`,
		query, answer, len(hits), contextNote)

	outs, err := j.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return Verdict{OK: true}
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &verdict); err != nil {
		return Verdict{OK: true}
	}
	return verdict
}

// Summarizer condenses an answer into two sentences.
type Summarizer struct {
	completer llm.Completer
}

// NewSummarizer creates a summarizer.
func NewSummarizer(completer llm.Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

// Summarize returns a short summary of the answer, or "" when there is
// nothing to summarize or the model fails.
func (s *Summarizer) Summarize(ctx context.Context, answer string) string {
	if answer == "" || s.completer == nil {
		return ""
	}

	prompt := fmt.Sprintf("Summarize the following answer in two sentences, clearly and precisely:\n\n%s", answer)
	outs, err := s.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(outs[0])
}
