package llm

import (
	"context"
	"fmt"
)

// MockCompleter returns scripted responses for tests. Responses are consumed
// in order; when exhausted, the last one repeats.
type MockCompleter struct {
	Responses []string
	Err       error
	// Prompts records every prompt received.
	Prompts []string

	next int
}

// Complete returns the next scripted response, repeated n times.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, n int) ([]string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("no scripted responses")
	}

	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++

	if n < 1 {
		n = 1
	}
	outs := make([]string, n)
	for i := range outs {
		outs[i] = m.Responses[idx]
	}
	return outs, nil
}

// Model returns the mock model name.
func (m *MockCompleter) Model() string {
	return "mock-chat-model"
}
