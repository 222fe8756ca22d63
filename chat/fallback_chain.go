package chat

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

// FallbackChain is a pre-built retrieval and generation pipeline used when
// the composer produced no context of its own.
type FallbackChain interface {
	Run(ctx context.Context, question string) (FallbackResult, error)
}

type FallbackResult struct {
	Answer    string
	Documents []Document
}

const fallbackTemplate = `You are a helpful technical support assistant. Use the following context to answer the question. If you don't know the answer based on the context, say so clearly and suggest creating a support ticket.

Context: {{.context}}

Question: {{.question}}

Answer: Provide a clear, step-by-step answer if applicable.`

// RetrievalQAChain is a langchaingo "stuff" RetrievalQA chain whose retriever
// reads from a SemanticSearcher.
type RetrievalQAChain struct {
	chain chains.RetrievalQA
}

func NewRetrievalQAChain(model llms.Model, searcher SemanticSearcher, k int) *RetrievalQAChain {
	if k <= 0 {
		k = semanticResultLimit
	}
	prompt := prompts.NewPromptTemplate(fallbackTemplate, []string{"context", "question"})
	combine := chains.NewStuffDocuments(chains.NewLLMChain(model, prompt))

	qa := chains.NewRetrievalQA(combine, semanticRetriever{searcher: searcher, k: k})
	qa.ReturnSourceDocuments = true

	return &RetrievalQAChain{chain: qa}
}

func (c *RetrievalQAChain) Run(ctx context.Context, question string) (FallbackResult, error) {
	out, err := chains.Call(ctx, c.chain, map[string]any{"query": question})
	if err != nil {
		return FallbackResult{}, fmt.Errorf("call retrieval chain: %w", err)
	}

	answer, _ := out["text"].(string)
	result := FallbackResult{Answer: answer}

	if docs, ok := out["source_documents"].([]schema.Document); ok {
		for _, doc := range docs {
			source, _ := doc.Metadata["source"].(string)
			title, _ := doc.Metadata["title"].(string)
			result.Documents = append(result.Documents, Document{
				Title:   title,
				Source:  source,
				Content: doc.PageContent,
				Score:   float64(doc.Score),
			})
		}
	}
	return result, nil
}

type semanticRetriever struct {
	searcher SemanticSearcher
	k        int
}

func (r semanticRetriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	if r.searcher == nil || !r.searcher.Available() {
		return nil, nil
	}
	docs, err := r.searcher.SimilaritySearch(ctx, query, r.k)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, schema.Document{
			PageContent: doc.Content,
			Metadata: map[string]any{
				"source": doc.Source,
				"title":  doc.Title,
			},
			Score: float32(doc.Score),
		})
	}
	return out, nil
}

var (
	_ FallbackChain    = (*RetrievalQAChain)(nil)
	_ schema.Retriever = semanticRetriever{}
)
