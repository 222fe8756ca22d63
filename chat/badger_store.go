package chat

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
)

const (
	badgerDocPrefix   = "doc:"
	badgerChunkPrefix = "chunk:"
)

// BadgerVectorStore keeps embedded chunks in a local Badger database and
// ranks them by cosine similarity with a full scan.
type BadgerVectorStore struct {
	db     *badger.DB
	logger *log.Logger
}

type badgerDocRecord struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	SHA       string    `json:"sha256"`
	UpdatedAt time.Time `json:"updated_at"`
}

type badgerChunkRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Section    string    `json:"section,omitempty"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
}

type badgerLogger struct {
	logger *log.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Printf("badger error: "+msg, items...)
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Printf("badger warning: "+msg, items...)
}

func (l *badgerLogger) Infof(string, ...any) {}

func (l *badgerLogger) Debugf(string, ...any) {}

// OpenBadgerVectorStore opens the store at dir, creating it when missing.
// An empty dir opens an in-memory store.
func OpenBadgerVectorStore(dir string, logger *log.Logger) (*BadgerVectorStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerVectorStore{db: db, logger: logger}, nil
}

func (s *BadgerVectorStore) Close() error {
	return s.db.Close()
}

func (s *BadgerVectorStore) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if limit <= 0 {
		limit = 5
	}

	var results []ChunkResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerChunkPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record badgerChunkRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return fmt.Errorf("decode chunk %s: %w", it.Item().Key(), err)
			}
			if len(record.Embedding) != len(embedding) {
				continue
			}

			results = append(results, ChunkResult{
				ChunkID:    record.ID,
				DocumentID: record.DocumentID,
				Title:      record.Title,
				Path:       record.Path,
				Content:    record.Content,
				Score:      cosineSimilarity(embedding, record.Embedding),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}

	slices.SortFunc(results, func(a, b ChunkResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *BadgerVectorStore) DocumentHash(_ context.Context, path string) (string, bool, error) {
	record, found, err := s.lookupDocument(path)
	if err != nil || !found {
		return "", found, err
	}
	return record.SHA, true, nil
}

func (s *BadgerVectorStore) lookupDocument(path string) (badgerDocRecord, bool, error) {
	var record badgerDocRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerDocPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return badgerDocRecord{}, false, nil
	}
	if err != nil {
		return badgerDocRecord{}, false, fmt.Errorf("read document %s: %w", path, err)
	}
	return record, true, nil
}

func (s *BadgerVectorStore) ReplaceDocument(_ context.Context, doc StoredDocument) (string, error) {
	existing, found, err := s.lookupDocument(doc.Path)
	if err != nil {
		return "", err
	}

	docID := doc.ID
	if found {
		docID = existing.ID
	}
	if docID == "" {
		docID = uuid.NewString()
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if found {
			if err := deletePrefix(txn, []byte(chunkKeyPrefix(docID))); err != nil {
				return err
			}
		}

		docValue, err := json.Marshal(badgerDocRecord{
			ID:        docID,
			Path:      doc.Path,
			Title:     doc.Title,
			SHA:       doc.SHA,
			UpdatedAt: updatedAt,
		})
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		if err := txn.Set([]byte(badgerDocPrefix+doc.Path), docValue); err != nil {
			return fmt.Errorf("write document: %w", err)
		}

		for _, chunk := range doc.Chunks {
			chunkID := chunk.ID
			if chunkID == "" {
				chunkID = uuid.NewString()
			}
			value, err := json.Marshal(badgerChunkRecord{
				ID:         chunkID,
				DocumentID: docID,
				Index:      chunk.Index,
				Section:    chunk.Section,
				Title:      doc.Title,
				Path:       doc.Path,
				Content:    chunk.Content,
				Embedding:  chunk.Embedding,
			})
			if err != nil {
				return fmt.Errorf("encode chunk %d: %w", chunk.Index, err)
			}
			key := fmt.Sprintf("%s%06d", chunkKeyPrefix(docID), chunk.Index)
			if err := txn.Set([]byte(key), value); err != nil {
				return fmt.Errorf("write chunk %d: %w", chunk.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("replace document %s: %w", doc.Path, err)
	}
	return docID, nil
}

// ChunkCount returns the number of stored chunks.
func (s *BadgerVectorStore) ChunkCount(context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerChunkPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerVectorStore) Clear(context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop badger data: %w", err)
	}
	return nil
}

func chunkKeyPrefix(docID string) string {
	return badgerChunkPrefix + docID + ":"
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var (
	_ VectorStore    = (*BadgerVectorStore)(nil)
	_ DocumentWriter = (*BadgerVectorStore)(nil)
	_ ChunkCounter   = (*BadgerVectorStore)(nil)
)
