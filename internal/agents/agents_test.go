package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-ai/doclens/internal/llm"
	"github.com/doclens-ai/doclens/internal/search"
)

func TestPlanner_Plan(t *testing.T) {
	plan := NewPlanner(3).Plan("what is the notice period?")
	assert.True(t, plan.UseRAG)
	assert.Equal(t, 3, plan.Rewrites)

	assert.Equal(t, 0, NewPlanner(-1).Plan("q").Rewrites)
}

func TestRewriter_Rewrite(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		`{"rewrites":["notice period length","how long is the notice period"]}`,
	}}

	rewrites := NewRewriter(completer).Rewrite(context.Background(), "what is the notice period?", 2)

	require.Len(t, rewrites, 2)
	assert.Equal(t, "notice period length", rewrites[0])
}

func TestRewriter_Rewrite_DropsOriginalAndBlank(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		`{"rewrites":["  ","original query","a useful variant"]}`,
	}}

	rewrites := NewRewriter(completer).Rewrite(context.Background(), "original query", 2)

	require.Len(t, rewrites, 1)
	assert.Equal(t, "a useful variant", rewrites[0])
}

func TestRewriter_Rewrite_FailureDegrades(t *testing.T) {
	completer := &llm.MockCompleter{Err: errors.New("model down")}
	assert.Nil(t, NewRewriter(completer).Rewrite(context.Background(), "q", 2))

	completer = &llm.MockCompleter{Responses: []string{"not json"}}
	assert.Nil(t, NewRewriter(completer).Rewrite(context.Background(), "q", 2))

	assert.Nil(t, NewRewriter(completer).Rewrite(context.Background(), "q", 0))
}

func TestBuildPrompt(t *testing.T) {
	hits := []search.Hit{
		{ChunkID: uuid.New(), Content: "First chunk content."},
		{ChunkID: uuid.New(), Content: strings.Repeat("x", 2000)},
	}

	prompt := BuildPrompt("what are the terms?", hits)

	assert.Contains(t, prompt, "what are the terms?")
	assert.Contains(t, prompt, "First chunk content.")
	assert.Contains(t, prompt, "\n\n---\n")
	// Long chunks enter the prompt truncated.
	assert.NotContains(t, prompt, strings.Repeat("x", chunkTruncation+1))
	assert.Contains(t, prompt, strings.Repeat("x", chunkTruncation))
}

func TestGenerator_Generate(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{"  The notice period is 30 days.  "}}

	answer, err := NewGenerator(completer).Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "The notice period is 30 days.", answer)
}

func TestJudge_Evaluate(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		`{"ok":false,"needs_more":true,"reason":"answer cites facts missing from context"}`,
	}}

	verdict := NewJudge(completer, "strict").Evaluate(context.Background(), "q", "a", nil)

	assert.False(t, verdict.OK)
	assert.True(t, verdict.NeedsMore)
	assert.NotEmpty(t, verdict.Reason)
}

func TestJudge_Evaluate_FailureAccepts(t *testing.T) {
	completer := &llm.MockCompleter{Err: errors.New("model down")}
	verdict := NewJudge(completer, "normal").Evaluate(context.Background(), "q", "a", nil)
	assert.True(t, verdict.OK)
	assert.False(t, verdict.NeedsMore)

	completer = &llm.MockCompleter{Responses: []string{"garbage"}}
	verdict = NewJudge(completer, "normal").Evaluate(context.Background(), "q", "a", nil)
	assert.True(t, verdict.OK)
}

func TestJudge_InvalidStrictnessDefaultsToNormal(t *testing.T) {
	judge := NewJudge(&llm.MockCompleter{Responses: []string{`{"ok":true}`}}, "bogus")
	assert.Equal(t, "normal", judge.strictness)
}

func TestNewJudge_StrictnessLevels(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"low", "lenient"},
		{"medium", "normal"},
		{"high", "strict"},
		{"lenient", "lenient"},
		{"normal", "normal"},
		{"strict", "strict"},
		{"", "normal"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NewJudge(nil, tc.in).strictness)
		})
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{"Short summary."}}
	assert.Equal(t, "Short summary.", NewSummarizer(completer).Summarize(context.Background(), "long answer"))

	assert.Empty(t, NewSummarizer(completer).Summarize(context.Background(), ""))

	failing := &llm.MockCompleter{Err: errors.New("down")}
	assert.Empty(t, NewSummarizer(failing).Summarize(context.Background(), "answer"))
}

func TestStripJSONFenceResponses(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		"```json\n{\"rewrites\":[\"fenced variant\"]}\n```",
	}}

	rewrites := NewRewriter(completer).Rewrite(context.Background(), "q", 1)
	require.Len(t, rewrites, 1)
	assert.Equal(t, "fenced variant", rewrites[0])
}
