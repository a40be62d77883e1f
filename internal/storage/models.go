// Package storage provides database models and repositories for doclens.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// JobStatus represents ingestion job status.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSucceeded JobStatus = "succeeded"
)

// RelationType names a directed relation between two documents.
type RelationType string

const (
	RelationDuplicateOf RelationType = "duplicate_of"
	RelationDerivedFrom RelationType = "derived_from"
)

// JSONMap is a JSONB column stored as a generic map.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Document is an uploaded file and its ingestion state.
type Document struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Filename  string         `json:"filename"`
	MimeType  string         `json:"mime_type"`
	Path      string         `json:"path"`
	Status    DocumentStatus `json:"status"`
	Meta      JSONMap        `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DocumentChunk is an indexed slice of a document with its embedding.
type DocumentChunk struct {
	ID         uuid.UUID       `json:"id"`
	DocumentID uuid.UUID       `json:"document_id"`
	ChunkIndex int             `json:"chunk_index"`
	Content    string          `json:"content"`
	Meta       JSONMap         `json:"meta"`
	Embedding  pgvector.Vector `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IngestJob records one run of the ingestion pipeline for a document.
type IngestJob struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Logs       JSONMap   `json:"logs"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DocumentRelation links two documents, e.g. a near-duplicate to its original.
type DocumentRelation struct {
	ID            uuid.UUID    `json:"id"`
	SrcDocumentID uuid.UUID    `json:"src_document_id"`
	DstDocumentID uuid.UUID    `json:"dst_document_id"`
	Relation      RelationType `json:"relation"`
	CreatedAt     time.Time    `json:"created_at"`
}
