package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	stdpath "path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/embeddings"
	"github.com/fabfab/support-agent/keyword"
	"github.com/fabfab/support-agent/knowledge"
)

const (
	defaultEmbedBatch   = 16
	defaultEmbedWorkers = 4

	// ArticlesFolder groups scraped help-center articles in the graph.
	ArticlesFolder = "help-center"
)

// GraphSyncer mirrors an ingested document into the knowledge graph.
type GraphSyncer interface {
	SyncDocument(ctx context.Context, doc knowledge.Document) error
}

type Options struct {
	// EmbedBatch is the number of fragments sent per embedding call.
	EmbedBatch int
	// Workers bounds concurrent embedding calls.
	Workers int
	Logger  *log.Logger
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Ingested  int
	Unchanged int
	Failed    int
}

type Service struct {
	store    chat.DocumentWriter
	graph    GraphSyncer
	embedder embeddings.Embedder
	logger   *log.Logger
	batch    int
	workers  int
}

// NewService wires ingestion to a vector store. graph may be nil when the
// knowledge graph is disabled.
func NewService(store chat.DocumentWriter, graph GraphSyncer, embedder embeddings.Embedder, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.EmbedBatch <= 0 {
		opts.EmbedBatch = defaultEmbedBatch
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultEmbedWorkers
	}

	return &Service{
		store:    store,
		graph:    graph,
		embedder: embedder,
		logger:   opts.Logger,
		batch:    opts.EmbedBatch,
		workers:  opts.Workers,
	}
}

func (s *Service) ready() error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if s.store == nil {
		return fmt.Errorf("vector store not configured")
	}
	return nil
}

// IngestDirectory ingests every supported file below dir. Per-file failures
// are logged and counted; they do not stop the run.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Summary, error) {
	var summary Summary
	if err := s.ready(); err != nil {
		return summary, err
	}
	if _, err := os.Stat(dir); err != nil {
		return summary, fmt.Errorf("data directory: %w", err)
	}

	var paths []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && DetectFormat(path) != FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return summary, fmt.Errorf("walk data directory: %w", err)
	}

	if len(paths) == 0 {
		s.logger.Printf("no supported documents found in %s", dir)
		return summary, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return summary, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
			summary.Failed++
			continue
		}

		relPath, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)
		folder := stdpath.Dir(relPath)
		if folder == "." || folder == "/" {
			folder = ""
		}

		payload := DocumentPayload{Path: relPath, Data: data}
		s.record(&summary, relPath, s.ingest(ctx, pool, payload, DetectFormat(path), folder))
	}

	return summary, nil
}

// IngestArticles embeds scraped help-center articles so semantic search
// covers the same knowledge base as keyword search. Each article is keyed by
// its URL.
func (s *Service) IngestArticles(ctx context.Context, articles []keyword.Article) (Summary, error) {
	var summary Summary
	if err := s.ready(); err != nil {
		return summary, err
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return summary, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if article.URL == "" || article.Content == "" {
			continue
		}
		payload := DocumentPayload{
			Path: article.URL,
			Data: []byte(fmt.Sprintf("# %s\n\nSOURCE: %s\n\n%s", article.Title, article.URL, article.Content)),
		}
		s.record(&summary, article.URL, s.ingest(ctx, pool, payload, FormatMarkdown, ArticlesFolder))
	}
	return summary, nil
}

var errUnchanged = errors.New("document unchanged")

func (s *Service) record(summary *Summary, path string, err error) {
	switch {
	case err == nil:
		summary.Ingested++
	case errors.Is(err, errUnchanged):
		summary.Unchanged++
	default:
		summary.Failed++
		s.logger.Printf("ingest failed for %s: %v", path, err)
	}
}

func (s *Service) ingest(ctx context.Context, pool *ants.Pool, payload DocumentPayload, format DocumentFormat, folder string) error {
	sum := sha256.Sum256(payload.Data)
	hash := hex.EncodeToString(sum[:])

	existing, found, err := s.store.DocumentHash(ctx, payload.Path)
	if err != nil {
		return fmt.Errorf("lookup document hash: %w", err)
	}
	if found && existing == hash {
		return errUnchanged
	}

	parser, ok := parserFor(format)
	if !ok {
		return fmt.Errorf("unsupported document format: %s", payload.Path)
	}
	parsed, err := parser.Parse(ctx, payload)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if len(parsed.Fragments) == 0 {
		s.logger.Printf("skip empty document %s", payload.Path)
		return errUnchanged
	}

	vectors, err := s.embedFragments(ctx, pool, parsed.Fragments)
	if err != nil {
		return err
	}

	stored := chat.StoredDocument{Path: payload.Path, Title: parsed.Title, SHA: hash}
	graphChunks := make([]knowledge.Chunk, 0, len(parsed.Fragments))
	for idx, fragment := range parsed.Fragments {
		chunkID := uuid.NewString()
		stored.Chunks = append(stored.Chunks, chat.StoredChunk{
			ID:        chunkID,
			Index:     idx,
			Section:   fragment.SectionTitle,
			Content:   fragment.Text,
			Embedding: vectors[idx],
		})
		graphChunks = append(graphChunks, knowledge.Chunk{
			ID:        chunkID,
			Index:     idx,
			Text:      fragment.Text,
			SectionID: fragment.SectionID,
		})
	}

	docID, err := s.store.ReplaceDocument(ctx, stored)
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	if s.graph != nil {
		doc := knowledge.Document{
			ID:     docID,
			Path:   payload.Path,
			Title:  parsed.Title,
			SHA:    hash,
			Folder: folder,
			Chunks: graphChunks,
		}
		for _, section := range parsed.Sections {
			doc.Sections = append(doc.Sections, knowledge.Section(section))
		}
		for _, topic := range parsed.Topics {
			doc.Topics = append(doc.Topics, knowledge.Topic(topic))
		}
		if err := s.graph.SyncDocument(ctx, doc); err != nil {
			return fmt.Errorf("sync knowledge graph: %w", err)
		}
	}

	s.logger.Printf("ingested %s (%d chunks)", payload.Path, len(stored.Chunks))
	return nil
}

// embedFragments embeds fragments in batches on the pool and returns the
// vectors in fragment order.
func (s *Service) embedFragments(ctx context.Context, pool *ants.Pool, fragments []ChunkFragment) ([][]float32, error) {
	vectors := make([][]float32, len(fragments))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(fragments); start += s.batch {
		end := min(start+s.batch, len(fragments))
		texts := make([]string, 0, end-start)
		for _, f := range fragments[start:end] {
			texts = append(texts, f.Text)
		}

		wg.Add(1)
		offset := start
		if err := pool.Submit(func() {
			defer wg.Done()
			out, err := s.embedder.Embed(ctx, texts)
			if err != nil {
				fail(fmt.Errorf("generate embeddings: %w", err))
				return
			}
			if len(out) != len(texts) {
				fail(fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(texts), len(out)))
				return
			}
			copy(vectors[offset:], out)
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", err))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
