package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type VectorStore interface {
	SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error)
}

// ChunkCounter is implemented by stores that can report how many chunks
// they hold.
type ChunkCounter interface {
	ChunkCount(ctx context.Context) (int, error)
}

// DocumentWriter is the write side of a vector store, used by ingestion.
type DocumentWriter interface {
	// DocumentHash returns the stored content hash for path, if any.
	DocumentHash(ctx context.Context, path string) (string, bool, error)
	// ReplaceDocument upserts the document and swaps all of its chunks.
	ReplaceDocument(ctx context.Context, doc StoredDocument) (string, error)
	Clear(ctx context.Context) error
}

type PostgresVectorStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVectorStore(pool *pgxpool.Pool) *PostgresVectorStore {
	return &PostgresVectorStore{pool: pool}
}

func (s *PostgresVectorStore) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if limit <= 0 {
		limit = 5
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// hnsw returns at most ef_search rows per scan
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", max(40, limit*4))); err != nil {
		return nil, fmt.Errorf("set hnsw ef_search: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            rc.id,
            rc.document_id,
            rd.title,
            rd.source_path,
            rc.content,
            (rc.embedding <=> $1::vector) AS distance
        FROM kb_chunks rc
        JOIN kb_documents rd ON rd.id = rc.document_id
        ORDER BY rc.embedding <=> $1::vector
        LIMIT $2
    `, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ChunkResult, 0)
	for rows.Next() {
		var item ChunkResult
		var distance float64
		if scanErr := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Title, &item.Path, &item.Content, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		// cosine distance, so the score matches the badger store's similarity
		item.Score = 1 - distance
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresVectorStore) DocumentHash(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, "SELECT sha256 FROM kb_documents WHERE source_path = $1", path).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query document hash: %w", err)
	}
	return hash, true, nil
}

func (s *PostgresVectorStore) ReplaceDocument(ctx context.Context, doc StoredDocument) (id string, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	docID, err := upsertDocument(ctx, tx, doc)
	if err != nil {
		return "", err
	}

	if _, err = tx.Exec(ctx, "DELETE FROM kb_chunks WHERE document_id = $1", docID); err != nil {
		return "", fmt.Errorf("clear existing chunks: %w", err)
	}

	for _, chunk := range doc.Chunks {
		chunkID, parseErr := uuid.Parse(chunk.ID)
		if parseErr != nil {
			chunkID = uuid.New()
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO kb_chunks (id, document_id, chunk_index, section_title, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, chunkID, docID, chunk.Index, chunk.Section, chunk.Content, pgvector.NewVector(chunk.Embedding)); err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return docID.String(), nil
}

func upsertDocument(ctx context.Context, tx pgx.Tx, doc StoredDocument) (uuid.UUID, error) {
	var docID uuid.UUID
	err := tx.QueryRow(ctx, "SELECT id FROM kb_documents WHERE source_path = $1", doc.Path).Scan(&docID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("query document: %w", err)
		}
		docID, err = uuid.Parse(doc.ID)
		if err != nil {
			docID = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO kb_documents (id, source_path, title, sha256, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
		`, docID, doc.Path, doc.Title, doc.SHA); err != nil {
			return uuid.Nil, fmt.Errorf("insert document: %w", err)
		}
		return docID, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE kb_documents
		SET title = $2,
		    sha256 = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, docID, doc.Title, doc.SHA); err != nil {
		return uuid.Nil, fmt.Errorf("update document: %w", err)
	}
	return docID, nil
}

func (s *PostgresVectorStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM kb_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("count knowledge chunks: %w", err)
	}
	return count, nil
}

func (s *PostgresVectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE kb_chunks, kb_documents"); err != nil {
		return fmt.Errorf("truncate knowledge tables: %w", err)
	}
	return nil
}

var (
	_ VectorStore    = (*PostgresVectorStore)(nil)
	_ DocumentWriter = (*PostgresVectorStore)(nil)
	_ ChunkCounter   = (*PostgresVectorStore)(nil)
)
