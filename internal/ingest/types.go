// Package ingest implements the document ingestion pipeline as a DAG of
// agents. Each agent reads from and writes to a shared Context; the runner
// executes independent agents concurrently.
package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doclens-ai/doclens/internal/extract"
)

// Segment is a structured slice of the document.
type Segment struct {
	Text  string
	Type  string // heading, section, paragraph, list, table
	Level int    // 0=root, 1=h1, 2=h2, 3=h3
	Meta  map[string]interface{}
}

// Entity is a recognized named entity.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"` // PERSON, ORG, DATE, MONEY, EMAIL, PHONE, ...
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// ProcessedChunk is a chunk on its way to the index.
type ProcessedChunk struct {
	Text             string
	ChunkIndex       int
	Embedding        []float32
	Meta             map[string]interface{}
	IsDuplicate      bool
	DeduplicatedWith string // content hash of the surviving chunk
}

// AgentLog is one log entry recorded during a run.
type AgentLog struct {
	Agent     string    `json:"agent"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Context carries all intermediate state through one ingestion run.
// Agents running concurrently must use the locked mutators for shared fields.
type Context struct {
	DocumentID uuid.UUID
	OwnerID    string
	FilePath   string
	Filename   string

	RawText string
	Blocks  []extract.TextBlock
	Tables  []extract.TableData

	Segments []Segment
	Chunks   []ProcessedChunk

	DocType  string
	Entities []Entity

	mu       sync.Mutex
	metadata map[string]interface{}
	metrics  map[string]interface{}
	logs     []AgentLog
	errors   []string
}

// NewContext creates an ingestion context for one document.
func NewContext(documentID uuid.UUID, ownerID, filePath, filename string) *Context {
	return &Context{
		DocumentID: documentID,
		OwnerID:    ownerID,
		FilePath:   filePath,
		Filename:   filename,
		metadata:   make(map[string]interface{}),
		metrics:    make(map[string]interface{}),
	}
}

// AddLog appends a log entry.
func (c *Context) AddLog(agent, status, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, AgentLog{
		Agent:     agent,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// AddError records a non-fatal problem.
func (c *Context) AddError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

// Errors returns a copy of recorded errors.
func (c *Context) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}

// Logs returns a copy of recorded log entries.
func (c *Context) Logs() []AgentLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AgentLog, len(c.logs))
	copy(out, c.logs)
	return out
}

// SetMetric records a performance metric.
func (c *Context) SetMetric(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics[key] = value
}

// Metric reads a metric value.
func (c *Context) Metric(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metrics[key]
	return v, ok
}

// SetMetadata records an extracted metadata field.
func (c *Context) SetMetadata(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata returns a copy of the extracted metadata map.
func (c *Context) Metadata() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}
