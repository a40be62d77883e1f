package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the schema if it does not exist. The embedding column
// dimension is fixed at migration time from the configured model dimension.
func Migrate(ctx context.Context, db *sql.DB, embeddingDim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			meta JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, chunk_index)
		)`, embeddingDim),

		`CREATE TABLE IF NOT EXISTS ingest_jobs (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			logs JSONB NOT NULL DEFAULT '{}',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS document_relations (
			id UUID PRIMARY KEY,
			src_document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			dst_document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			relation TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (src_document_id, dst_document_id, relation)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_document ON ingest_jobs(document_id)`,

		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,

		`CREATE INDEX IF NOT EXISTS idx_chunks_content_fts ON document_chunks
			USING gin (to_tsvector('simple', content))`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	return nil
}
