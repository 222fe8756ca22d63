package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/support-agent/llm"
)

// KeywordSearcher is the keyword article index as seen by the composer.
type KeywordSearcher interface {
	SearchAndGetContext(ctx context.Context, query string, maxArticles int) (string, error)
	Available() bool
}

// SemanticSearcher is the embedding index as seen by the composer.
type SemanticSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
	Available() bool
}

type Dependencies struct {
	LLM        llm.Client
	Keyword    KeywordSearcher
	Semantic   SemanticSearcher
	Fallback   FallbackChain
	Classifier *Classifier
	Escalation *EscalationDetector
	Product    string
}

// Service composes answers from keyword search, semantic search and the
// language model. It holds no per-request state and is safe for concurrent use.
type Service struct {
	llm        llm.Client
	keyword    KeywordSearcher
	semantic   SemanticSearcher
	fallback   FallbackChain
	classifier *Classifier
	escalation *EscalationDetector
	product    string
	logger     *log.Logger
}

func NewService(deps Dependencies, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	product := deps.Product
	if product == "" {
		product = "product"
	}

	return &Service{
		llm:        deps.LLM,
		keyword:    deps.Keyword,
		semantic:   deps.Semantic,
		fallback:   deps.Fallback,
		classifier: deps.Classifier,
		escalation: deps.Escalation,
		product:    product,
		logger:     logger,
	}
}

// Ready reports whether a language model client is configured.
func (s *Service) Ready() bool {
	return s.llm != nil
}

func (s *Service) Answer(ctx context.Context, q Question) (Response, error) {
	if s.llm == nil {
		return Response{}, ErrServiceUnavailable
	}

	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{}, fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	}

	var knowledge Knowledge
	inDomain := s.classifier.IsInDomain(q.Text)
	if inDomain {
		knowledge = s.SearchKnowledge(ctx, q.Text)
	} else {
		s.logger.Printf("question classified out of domain, skipping search")
	}

	var (
		resp Response
		err  error
	)
	if knowledge.Empty() {
		resp, err = s.answerWithoutContext(ctx, q, inDomain)
	} else {
		resp, err = s.answerWithContext(ctx, q, knowledge)
	}
	if err != nil {
		return Response{}, err
	}

	resp.SuggestTicket = s.escalation.ShouldEscalate(resp.Answer)
	return resp, nil
}

// SearchKnowledge runs the keyword then semantic providers. Provider failures
// are logged and the failing method is left out of the result.
func (s *Service) SearchKnowledge(ctx context.Context, text string) Knowledge {
	var knowledge Knowledge

	if s.keyword != nil && s.keyword.Available() {
		keywordContext, err := s.keyword.SearchAndGetContext(ctx, text, keywordMaxArticles)
		switch {
		case err != nil:
			s.logger.Printf("keyword search failed: %v", err)
		case strings.TrimSpace(keywordContext) != "":
			knowledge.Blocks = append(knowledge.Blocks, ContextBlock{Method: MethodKeyword, Content: keywordContext})
			knowledge.Methods = append(knowledge.Methods, MethodKeyword)
			knowledge.Sources = append(knowledge.Sources, ExtractURLs(keywordContext)...)
		}
	}

	if s.semantic != nil && s.semantic.Available() {
		docs, err := s.semantic.SimilaritySearch(ctx, text, semanticResultLimit)
		switch {
		case err != nil:
			s.logger.Printf("semantic search failed: %v", err)
		case len(docs) > 0:
			knowledge.Blocks = append(knowledge.Blocks, ContextBlock{Method: MethodSemantic, Content: formatSemanticContext(docs)})
			knowledge.Methods = append(knowledge.Methods, MethodSemantic)
			if len(knowledge.Sources) == 0 {
				knowledge.Sources = []string{SourceKnowledgeBase}
			}
		}
	}

	return knowledge
}

func (s *Service) answerWithContext(ctx context.Context, q Question, knowledge Knowledge) (Response, error) {
	answer, err := s.generate(ctx, formatAugmentedPrompt(s.product, q, knowledge.Blocks))
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:  answer,
		Sources: knowledge.Sources,
		Methods: knowledge.Methods,
	}, nil
}

// answerWithoutContext uses the fallback chain for in-domain questions only;
// the chain retrieves from the semantic index.
func (s *Service) answerWithoutContext(ctx context.Context, q Question, inDomain bool) (Response, error) {
	if s.fallback != nil && inDomain {
		result, err := s.fallback.Run(ctx, q.Text)
		if err != nil {
			s.logger.Printf("fallback chain failed: %v", err)
			return Response{}, fmt.Errorf("%w: fallback chain: %w", ErrInternal, err)
		}
		answer := strings.TrimSpace(result.Answer)
		if answer == "" {
			return Response{}, fmt.Errorf("%w: fallback chain returned an empty answer", ErrInternal)
		}

		sources := make([]string, 0, len(result.Documents))
		for _, doc := range result.Documents {
			sources = append(sources, truncate(doc.Content, chainExcerptLength)+"...")
		}
		return Response{
			Answer:  answer,
			Sources: sources,
			Methods: []string{MethodChain},
		}, nil
	}

	answer, err := s.generate(ctx, formatGeneralPrompt(s.product, q))
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:  answer,
		Sources: []string{SourceGeneralKnowledge},
		Methods: []string{MethodGeneral},
	}, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(s.product)},
		{Role: llm.RoleUser, Content: prompt},
	}

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		s.logger.Printf("llm generate failed: %v", err)
		return "", fmt.Errorf("%w: llm generate: %w", ErrInternal, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: llm returned an empty answer", ErrInternal)
	}
	return answer, nil
}

// Generate runs a single free-form prompt through the configured model.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if s.llm == nil {
		return "", ErrServiceUnavailable
	}
	return s.generate(ctx, prompt)
}
