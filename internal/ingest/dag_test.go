package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent is a scriptable DAG node for execution tests.
type stubAgent struct {
	name     string
	deps     []string
	required []string
	err      error

	mu  *sync.Mutex
	ran *[]string
}

func (a *stubAgent) Name() string           { return a.name }
func (a *stubAgent) Dependencies() []string { return a.deps }
func (a *stubAgent) Required() []string     { return a.required }

func (a *stubAgent) Process(ctx context.Context, ic *Context) error {
	if a.mu != nil {
		a.mu.Lock()
		*a.ran = append(*a.ran, a.name)
		a.mu.Unlock()
	}
	return a.err
}

func newRunRecorder() (*sync.Mutex, *[]string) {
	return &sync.Mutex{}, &[]string{}
}

func testContext() *Context {
	return NewContext(uuid.New(), "owner-1", "", "doc.txt")
}

func TestDAG_Execute_RespectsDependencyOrder(t *testing.T) {
	mu, ran := newRunRecorder()

	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "extract", mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "structure", deps: []string{"extract"}, required: []string{"extract"}, mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "dedup", deps: []string{"structure"}, required: []string{"structure"}, mu: mu, ran: ran})

	results, err := dag.Execute(context.Background(), testContext())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"extract", "structure", "dedup"}, *ran)
	for _, res := range results {
		assert.Equal(t, StatusSuccess, res.Status)
	}
}

func TestDAG_Execute_CriticalFailureAborts(t *testing.T) {
	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "extract", err: errors.New("unreadable file")})
	dag.Add(&stubAgent{name: "structure", deps: []string{"extract"}, required: []string{"extract"}})

	results, err := dag.Execute(context.Background(), testContext())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCritical))
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
}

func TestDAG_Execute_RequiredFailureSkipsDependents(t *testing.T) {
	mu, ran := newRunRecorder()

	// structure fails (non-critical), so dedup is skipped. policy declares
	// dedup only as an ordering dependency and still runs.
	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "extract", mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "structure", deps: []string{"extract"}, required: []string{"extract"}, err: errors.New("boom"), mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "dedup", deps: []string{"structure"}, required: []string{"structure"}, mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "policy", deps: []string{"dedup"}, mu: mu, ran: ran})

	results, err := dag.Execute(context.Background(), testContext())
	require.NoError(t, err)

	statuses := make(map[string]AgentStatus)
	for _, res := range results {
		statuses[res.Agent] = res.Status
	}
	assert.Equal(t, StatusFailed, statuses["structure"])
	assert.Equal(t, StatusSkipped, statuses["dedup"])
	assert.Equal(t, StatusSuccess, statuses["policy"])
	assert.NotContains(t, *ran, "dedup")
	assert.Contains(t, *ran, "policy")
}

func TestDAG_Execute_NonRequiredFailureDoesNotBlock(t *testing.T) {
	mu, ran := newRunRecorder()

	// meta fails but index only requires extract and structure, so indexing
	// still runs and the run succeeds.
	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "extract", mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "structure", deps: []string{"extract"}, required: []string{"extract"}, mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "meta", deps: []string{"extract", "structure"}, required: []string{"extract"}, err: errors.New("model down"), mu: mu, ran: ran})
	dag.Add(&stubAgent{
		name:     "index",
		deps:     []string{"extract", "structure", "meta"},
		required: []string{"extract", "structure"},
		mu:       mu, ran: ran,
	})

	results, err := dag.Execute(context.Background(), testContext())
	require.NoError(t, err)

	statuses := make(map[string]AgentStatus)
	for _, res := range results {
		statuses[res.Agent] = res.Status
	}
	assert.Equal(t, StatusFailed, statuses["meta"])
	assert.Equal(t, StatusSuccess, statuses["index"])
	assert.Contains(t, *ran, "index")
}

func TestDAG_Execute_StuckGraph(t *testing.T) {
	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "a", deps: []string{"b"}})
	dag.Add(&stubAgent{name: "b", deps: []string{"a"}})

	ic := testContext()
	_, err := dag.Execute(context.Background(), ic)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDAGStuck))
	assert.NotEmpty(t, ic.Errors())
}

func TestDAG_Execute_MissingDependency(t *testing.T) {
	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "structure", deps: []string{"extract"}})

	_, err := dag.Execute(context.Background(), testContext())
	assert.True(t, errors.Is(err, ErrDAGStuck))
}

func TestDAG_Execute_IndependentAgentsRunInOneWave(t *testing.T) {
	mu, ran := newRunRecorder()

	dag := NewDAG(nil)
	dag.Add(&stubAgent{name: "extract", mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "meta", deps: []string{"extract"}, required: []string{"extract"}, mu: mu, ran: ran})
	dag.Add(&stubAgent{name: "table", deps: []string{"extract"}, required: []string{"extract"}, mu: mu, ran: ran})

	results, err := dag.Execute(context.Background(), testContext())
	require.NoError(t, err)
	require.Len(t, results, 3)

	// extract runs alone first, then meta and table in the second wave.
	assert.Equal(t, "extract", (*ran)[0])
	assert.ElementsMatch(t, []string{"meta", "table"}, (*ran)[1:])
}
