package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// mapConstraintError translates unique constraint failures into ErrConflict.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// DB represents a database connection interface satisfied by *sql.DB and *sql.Tx.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DocumentRepository handles document CRUD operations.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = DocumentStatusPending
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	query := `
		INSERT INTO documents (id, owner_id, filename, mime_type, path, status, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.OwnerID, doc.Filename, doc.MimeType, doc.Path,
		doc.Status, doc.Meta, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetByID retrieves a document by ID with owner scoping.
func (r *DocumentRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Document, error) {
	query := `
		SELECT id, owner_id, filename, mime_type, path, status, meta, created_at, updated_at
		FROM documents WHERE id = $1 AND owner_id = $2
	`
	doc := &Document{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.Path,
		&doc.Status, &doc.Meta, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// ListByOwner lists documents for an owner, newest first.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Document, error) {
	query := `
		SELECT id, owner_id, filename, mime_type, path, status, meta, created_at, updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		if err := rows.Scan(
			&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.Path,
			&doc.Status, &doc.Meta, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus transitions a document to a new lifecycle status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	query := `UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMeta replaces a document's metadata.
func (r *DocumentRepository) UpdateMeta(ctx context.Context, id uuid.UUID, meta JSONMap) error {
	query := `UPDATE documents SET meta = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, meta, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document with owner scoping. Chunks, jobs, and relations
// go with it via cascade.
func (r *DocumentRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllByOwner removes every document of an owner, returning how many
// were deleted. Chunks, jobs, and relations cascade.
func (r *DocumentRepository) DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `DELETE FROM documents WHERE owner_id = $1`
	res, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ChunkRepository handles document chunk persistence.
type ChunkRepository struct {
	db DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Insert inserts a single chunk using the given executor, typically a
// transaction during indexing.
func (r *ChunkRepository) Insert(ctx context.Context, exec DB, chunk *DocumentChunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	chunk.CreatedAt = time.Now()

	query := `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, meta, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := exec.ExecContext(ctx, query,
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content,
		chunk.Meta, chunk.Embedding, chunk.CreatedAt,
	)
	return mapConstraintError(err)
}

// DeleteByDocument removes all chunks of a document using the given executor.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, exec DB, documentID uuid.UUID) error {
	query := `DELETE FROM document_chunks WHERE document_id = $1`
	_, err := exec.ExecContext(ctx, query, documentID)
	return err
}

// CountByDocument returns the number of stored chunks for a document.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`
	var count int
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(&count)
	return count, err
}

// ListByDocument returns a document's chunks ordered by chunk index.
// Embeddings are not loaded.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*DocumentChunk, error) {
	query := `
		SELECT id, document_id, chunk_index, content, meta, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*DocumentChunk
	for rows.Next() {
		chunk := &DocumentChunk{}
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.Meta, &chunk.CreatedAt,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Analyze refreshes planner statistics for the chunk table. Best effort.
func (r *ChunkRepository) Analyze(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `ANALYZE document_chunks`)
	return err
}

// JobRepository handles ingestion job persistence.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job in pending state.
func (r *JobRepository) Create(ctx context.Context, job *IngestJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	job.StartedAt = time.Now()

	query := `
		INSERT INTO ingest_jobs (id, document_id, status, error, logs, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.DocumentID, job.Status, job.Error, job.Logs, job.StartedAt,
	)
	return err
}

// Finish records the terminal state of a job along with its agent logs.
func (r *JobRepository) Finish(ctx context.Context, id uuid.UUID, status JobStatus, errMsg string, logs JSONMap) error {
	query := `
		UPDATE ingest_jobs
		SET status = $2, error = $3, logs = $4, finished_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, status, errMsg, logs, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestByDocument returns the most recent job for a document.
func (r *JobRepository) LatestByDocument(ctx context.Context, documentID uuid.UUID) (*IngestJob, error) {
	query := `
		SELECT id, document_id, status, error, logs, started_at, finished_at
		FROM ingest_jobs
		WHERE document_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	job := &IngestJob{}
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&job.ID, &job.DocumentID, &job.Status, &job.Error,
		&job.Logs, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// RelationRepository handles document relation persistence.
type RelationRepository struct {
	db DB
}

// NewRelationRepository creates a new relation repository.
func NewRelationRepository(db DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// Create inserts a relation between two documents.
func (r *RelationRepository) Create(ctx context.Context, rel *DocumentRelation) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.CreatedAt = time.Now()

	query := `
		INSERT INTO document_relations (id, src_document_id, dst_document_id, relation, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		rel.ID, rel.SrcDocumentID, rel.DstDocumentID, rel.Relation, rel.CreatedAt,
	)
	return mapConstraintError(err)
}

// ListBySource lists relations originating from a document.
func (r *RelationRepository) ListBySource(ctx context.Context, srcID uuid.UUID) ([]*DocumentRelation, error) {
	query := `
		SELECT id, src_document_id, dst_document_id, relation, created_at
		FROM document_relations
		WHERE src_document_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, srcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*DocumentRelation
	for rows.Next() {
		rel := &DocumentRelation{}
		if err := rows.Scan(
			&rel.ID, &rel.SrcDocumentID, &rel.DstDocumentID, &rel.Relation, &rel.CreatedAt,
		); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// Repositories bundles all repositories over one database handle.
type Repositories struct {
	DB        *sql.DB
	Documents *DocumentRepository
	Chunks    *ChunkRepository
	Jobs      *JobRepository
	Relations *RelationRepository
}

// NewRepositories creates the repository bundle.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DB:        db,
		Documents: NewDocumentRepository(db),
		Chunks:    NewChunkRepository(db),
		Jobs:      NewJobRepository(db),
		Relations: NewRelationRepository(db),
	}
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (r *Repositories) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
