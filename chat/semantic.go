package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/fabfab/support-agent/embeddings"
)

// SemanticSearch answers similarity queries by embedding the query and
// asking a vector store for the nearest chunks. A graph store, when present,
// enriches hits with related documents.
type SemanticSearch struct {
	vectors  VectorStore
	graph    GraphStore
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewSemanticSearch(vectors VectorStore, graph GraphStore, embedder embeddings.Embedder, logger *log.Logger) *SemanticSearch {
	if logger == nil {
		logger = log.Default()
	}

	return &SemanticSearch{
		vectors:  vectors,
		graph:    graph,
		embedder: embedder,
		logger:   logger,
	}
}

func (s *SemanticSearch) Available() bool {
	return s != nil && s.vectors != nil && s.embedder != nil
}

// ChunkCount reports how many chunks the vector store holds.
func (s *SemanticSearch) ChunkCount(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, fmt.Errorf("semantic search is not configured")
	}
	counter, ok := s.vectors.(ChunkCounter)
	if !ok {
		return 0, fmt.Errorf("vector store cannot report its size")
	}
	return counter.ChunkCount(ctx)
}

func (s *SemanticSearch) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	if !s.Available() {
		return nil, fmt.Errorf("semantic search is not configured")
	}
	if k <= 0 {
		k = semanticResultLimit
	}

	embedding, err := embeddings.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.vectors.SimilarChunks(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	insights := map[string]DocumentInsight{}
	if s.graph != nil {
		docIDs := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			docIDs = append(docIDs, chunk.DocumentID)
		}
		insightMap, insightErr := s.graph.DocumentInsights(ctx, unique(docIDs))
		if insightErr != nil {
			s.logger.Printf("graph insights error: %v", insightErr)
		} else {
			insights = insightMap
		}
	}

	docs := make([]Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, Document{
			ID:      chunk.DocumentID,
			Title:   chunk.Title,
			Source:  chunk.Path,
			Content: chunk.Content,
			Score:   chunk.Score,
			Insight: insights[chunk.DocumentID],
		})
	}
	return docs, nil
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
