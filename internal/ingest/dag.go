package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doclens-ai/doclens/internal/observability"
)

// DAG execution errors.
var (
	// ErrDAGStuck signals that no agent can make progress, which means the
	// declared dependencies contain a cycle or reference a missing agent.
	ErrDAGStuck = errors.New("dag execution stuck")
	// ErrCritical wraps the failure of an agent whose failure aborts the run.
	ErrCritical = errors.New("critical agent failed")
)

// AgentStatus is the lifecycle state of one agent within a run.
type AgentStatus string

const (
	StatusPending AgentStatus = "pending"
	StatusRunning AgentStatus = "running"
	StatusSuccess AgentStatus = "success"
	StatusFailed  AgentStatus = "failed"
	StatusSkipped AgentStatus = "skipped"
)

// Agent is one node of the ingestion DAG.
type Agent interface {
	// Name identifies the agent within the DAG.
	Name() string
	// Dependencies lists agents that must reach a terminal state first.
	Dependencies() []string
	// Required lists the subset of dependencies whose success this agent
	// needs. A failed or skipped required dependency skips this agent;
	// other dependency failures merely precede it.
	Required() []string
	// Process runs the agent against the shared context.
	Process(ctx context.Context, ic *Context) error
}

// Critical names the agents whose failure aborts the whole run.
var Critical = map[string]bool{
	"extract": true,
	"index":   true,
}

// AgentResult is the outcome of one agent execution.
type AgentResult struct {
	Agent    string        `json:"agent"`
	Status   AgentStatus   `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

// DAG orchestrates agents by their declared dependencies.
type DAG struct {
	agents []Agent
	byName map[string]Agent
	logger *observability.Logger
}

// NewDAG creates an empty DAG.
func NewDAG(logger *observability.Logger) *DAG {
	if logger == nil {
		logger = observability.Nop()
	}
	return &DAG{
		byName: make(map[string]Agent),
		logger: logger,
	}
}

// Add registers an agent.
func (d *DAG) Add(agent Agent) {
	d.agents = append(d.agents, agent)
	d.byName[agent.Name()] = agent
}

// Execute runs all agents respecting dependency order. Agents whose
// dependencies are all terminal run concurrently within a wave. It returns
// the per-agent results in completion order; the error is non-nil only for a
// stuck graph or a critical agent failure.
func (d *DAG) Execute(ctx context.Context, ic *Context) ([]AgentResult, error) {
	statuses := make(map[string]AgentStatus, len(d.agents))
	for _, agent := range d.agents {
		statuses[agent.Name()] = StatusPending
	}

	var (
		mu      sync.Mutex
		results []AgentResult
	)

	record := func(res AgentResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		statuses[res.Agent] = res.Status
	}

	done := 0
	for done < len(d.agents) {
		ready := d.readyAgents(statuses)
		if len(ready) == 0 {
			ic.AddError("dag execution stuck, dependency cycle or missing agent")
			return results, ErrDAGStuck
		}

		// Agents whose required dependency did not succeed are skipped
		// without running.
		var runnable []Agent
		for _, agent := range ready {
			if dep, ok := d.unmetRequirement(agent, statuses); ok {
				record(AgentResult{
					Agent:   agent.Name(),
					Status:  StatusSkipped,
					Message: fmt.Sprintf("required dependency %s did not succeed", dep),
				})
				ic.AddLog(agent.Name(), string(StatusSkipped), "required dependency "+dep+" did not succeed")
				done++
				continue
			}
			runnable = append(runnable, agent)
		}

		if len(runnable) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, agent := range runnable {
			agent := agent
			mu.Lock()
			statuses[agent.Name()] = StatusRunning
			mu.Unlock()

			g.Go(func() error {
				log := d.logger.WithAgent(agent.Name()).WithDocument(ic.DocumentID.String())
				log.Debug().Msg("agent started")

				start := time.Now()
				err := agent.Process(gctx, ic)
				elapsed := time.Since(start)

				if err != nil {
					record(AgentResult{
						Agent:    agent.Name(),
						Status:   StatusFailed,
						Message:  err.Error(),
						Duration: elapsed,
					})
					ic.AddError(fmt.Sprintf("%s: %v", agent.Name(), err))
					ic.AddLog(agent.Name(), string(StatusFailed), err.Error())
					log.Error().Err(err).Dur("duration", elapsed).Msg("agent failed")

					if Critical[agent.Name()] {
						return fmt.Errorf("%w: %s: %v", ErrCritical, agent.Name(), err)
					}
					return nil
				}

				record(AgentResult{
					Agent:    agent.Name(),
					Status:   StatusSuccess,
					Duration: elapsed,
				})
				ic.AddLog(agent.Name(), string(StatusSuccess), "completed")
				log.Debug().Dur("duration", elapsed).Msg("agent completed")
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return results, err
		}
		done += len(runnable)
	}

	return results, nil
}

// readyAgents returns pending agents whose dependencies are all terminal.
func (d *DAG) readyAgents(statuses map[string]AgentStatus) []Agent {
	var ready []Agent
	for _, agent := range d.agents {
		if statuses[agent.Name()] != StatusPending {
			continue
		}
		ok := true
		for _, dep := range agent.Dependencies() {
			switch statuses[dep] {
			case StatusSuccess, StatusFailed, StatusSkipped:
			default:
				ok = false
			}
		}
		if ok {
			ready = append(ready, agent)
		}
	}
	return ready
}

// unmetRequirement reports the first required dependency that did not succeed.
func (d *DAG) unmetRequirement(agent Agent, statuses map[string]AgentStatus) (string, bool) {
	for _, dep := range agent.Required() {
		if statuses[dep] != StatusSuccess {
			return dep, true
		}
	}
	return "", false
}
