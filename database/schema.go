package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type schemaStep struct {
	name string
	sql  string
}

func knowledgeSchema(dimension int) []schemaStep {
	return []schemaStep{
		{"vector extension", `CREATE EXTENSION IF NOT EXISTS vector`},
		{"kb_documents", `
			CREATE TABLE IF NOT EXISTS kb_documents (
				id          UUID PRIMARY KEY,
				source_path TEXT NOT NULL UNIQUE,
				title       TEXT,
				sha256      TEXT NOT NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`},
		{"kb_chunks", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS kb_chunks (
				id            UUID PRIMARY KEY,
				document_id   UUID NOT NULL REFERENCES kb_documents(id) ON DELETE CASCADE,
				chunk_index   INT NOT NULL,
				section_title TEXT,
				content       TEXT NOT NULL,
				embedding     VECTOR(%d) NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (document_id, chunk_index)
			)`, dimension)},
		{"chunk document index", `CREATE INDEX IF NOT EXISTS kb_chunks_document_idx ON kb_chunks (document_id)`},
		{"chunk embedding index", `CREATE INDEX IF NOT EXISTS kb_chunks_embedding_idx ON kb_chunks USING hnsw (embedding vector_cosine_ops)`},
	}
}

// EnsureKnowledgeSchema creates the pgvector tables holding ingested
// documents and their embedded chunks. All steps run in one transaction.
func EnsureKnowledgeSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, step := range knowledgeSchema(dimension) {
			if _, err := tx.Exec(ctx, step.sql); err != nil {
				return fmt.Errorf("create %s: %w", step.name, err)
			}
		}
		return nil
	})
}
