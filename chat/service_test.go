package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/support-agent/llm"
)

type stubLLM struct {
	answer  string
	err     error
	calls   int
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.calls++
	if len(messages) > 0 {
		s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

type stubKeyword struct {
	context   string
	err       error
	available bool
	calls     int
}

func (s *stubKeyword) SearchAndGetContext(context.Context, string, int) (string, error) {
	s.calls++
	return s.context, s.err
}

func (s *stubKeyword) Available() bool { return s.available }

var _ KeywordSearcher = (*stubKeyword)(nil)

type stubSemantic struct {
	docs      []Document
	err       error
	available bool
	calls     int
	lastK     int
}

func (s *stubSemantic) SimilaritySearch(_ context.Context, _ string, k int) ([]Document, error) {
	s.calls++
	s.lastK = k
	return s.docs, s.err
}

func (s *stubSemantic) Available() bool { return s.available }

var _ SemanticSearcher = (*stubSemantic)(nil)

type stubChain struct {
	result FallbackResult
	err    error
	calls  int
}

func (s *stubChain) Run(context.Context, string) (FallbackResult, error) {
	s.calls++
	return s.result, s.err
}

var _ FallbackChain = (*stubChain)(nil)

const keywordContext = "RELEVANT INFORMATION FROM DVSUM KNOWLEDGE BASE:\n\n" +
	"Article 1: Reset your password\nURL: https://help.example.com/articles/1-reset\nScraped: 2024-01-01\n\n" +
	"Article 2: Account lockout\nURL: http://help.example.com/articles/2-lockout\nScraped: 2024-01-01\n"

func newTestService(deps Dependencies) *Service {
	if deps.Classifier == nil {
		deps.Classifier = NewClassifier([]string{"password", "gateway", "dvsum"})
	}
	if deps.Escalation == nil {
		deps.Escalation = NewEscalationDetector([]string{"i don't know", "unclear", "contact support", "need more information"})
	}
	deps.Product = "DVSum"
	return NewService(deps, log.New(io.Discard, "", 0))
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	model := &stubLLM{answer: "unused"}
	keyword := &stubKeyword{available: true, context: keywordContext}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword})

	for _, question := range []string{"", "   ", "\n\t"} {
		_, err := svc.Answer(context.Background(), Question{Text: question})
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Zero(t, model.calls)
	assert.Zero(t, keyword.calls)
}

func TestAnswerWithoutLLMIsUnavailable(t *testing.T) {
	keyword := &stubKeyword{available: true, context: keywordContext}
	semantic := &stubSemantic{available: true}
	svc := newTestService(Dependencies{Keyword: keyword, Semantic: semantic})

	for _, question := range []string{"", "How do I reset my password?"} {
		_, err := svc.Answer(context.Background(), Question{Text: question})
		require.ErrorIs(t, err, ErrServiceUnavailable)
		assert.True(t, strings.HasPrefix(err.Error(), "LLM not initialized"))
	}
	assert.Zero(t, keyword.calls)
	assert.Zero(t, semantic.calls)
	assert.False(t, svc.Ready())
}

func TestAnswerOutOfDomainSkipsProviders(t *testing.T) {
	model := &stubLLM{answer: "Paris is the capital of France."}
	keyword := &stubKeyword{available: true, context: keywordContext}
	semantic := &stubSemantic{available: true, docs: []Document{{Content: "doc"}}}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword, Semantic: semantic})

	resp, err := svc.Answer(context.Background(), Question{Text: "What is the capital of France?"})
	require.NoError(t, err)

	assert.Zero(t, keyword.calls)
	assert.Zero(t, semantic.calls)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, []string{SourceGeneralKnowledge}, resp.Sources)
	assert.Equal(t, []string{MethodGeneral}, resp.Methods)
}

func TestAnswerBothProvidersContribute(t *testing.T) {
	model := &stubLLM{answer: "1. Open Settings\n2. Click Reset"}
	keyword := &stubKeyword{available: true, context: keywordContext}
	semantic := &stubSemantic{available: true, docs: []Document{{Content: "Passwords are managed from the profile page."}}}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword, Semantic: semantic})

	resp, err := svc.Answer(context.Background(), Question{Text: "How do I reset my password?"})
	require.NoError(t, err)

	assert.Equal(t, []string{MethodKeyword, MethodSemantic}, resp.Methods)
	assert.Equal(t, []string{
		"https://help.example.com/articles/1-reset",
		"http://help.example.com/articles/2-lockout",
	}, resp.Sources)
	assert.False(t, resp.SuggestTicket)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, semanticResultLimit, semantic.lastK)

	prompt := model.prompts[0]
	keywordAt := strings.Index(prompt, "\n"+MethodKeyword+"\n")
	semanticAt := strings.Index(prompt, "\n"+MethodSemantic+"\n")
	require.NotEqual(t, -1, keywordAt)
	require.NotEqual(t, -1, semanticAt)
	assert.Less(t, keywordAt, semanticAt)
	assert.Contains(t, prompt, "RELATED DOCUMENTATION:")
}

func TestAnswerEmptyProvidersFallBackToGeneralKnowledge(t *testing.T) {
	model := &stubLLM{answer: "Try restarting the gateway service."}
	keyword := &stubKeyword{available: true}
	semantic := &stubSemantic{available: true}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword, Semantic: semantic})

	resp, err := svc.Answer(context.Background(), Question{Text: "gateway keeps restarting"})
	require.NoError(t, err)

	assert.Equal(t, 1, keyword.calls)
	assert.Equal(t, 1, semantic.calls)
	assert.NotContains(t, resp.Methods, MethodKeyword)
	assert.NotContains(t, resp.Methods, MethodSemantic)
	assert.Equal(t, []string{SourceGeneralKnowledge}, resp.Sources)
	assert.NotContains(t, model.prompts[0], "KNOWLEDGE BASE:")
}

func TestAnswerProviderFailuresAreOmitted(t *testing.T) {
	model := &stubLLM{answer: "Use the gateway console."}
	keyword := &stubKeyword{available: true, err: errors.New("index corrupted")}
	semantic := &stubSemantic{available: true, docs: []Document{{Content: "Gateway console docs"}}}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword, Semantic: semantic})

	resp, err := svc.Answer(context.Background(), Question{Text: "gateway console"})
	require.NoError(t, err)
	assert.Equal(t, []string{MethodSemantic}, resp.Methods)
	assert.Equal(t, []string{SourceKnowledgeBase}, resp.Sources)
}

func TestAnswerSkipsUnavailableProviders(t *testing.T) {
	model := &stubLLM{answer: "ok"}
	keyword := &stubKeyword{available: false, context: keywordContext}
	semantic := &stubSemantic{available: false}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword, Semantic: semantic})

	resp, err := svc.Answer(context.Background(), Question{Text: "dvsum scan"})
	require.NoError(t, err)
	assert.Zero(t, keyword.calls)
	assert.Zero(t, semantic.calls)
	assert.Equal(t, []string{MethodGeneral}, resp.Methods)
}

func TestAnswerTruncatesSemanticDocuments(t *testing.T) {
	model := &stubLLM{answer: "ok"}
	long := strings.Repeat("a", semanticExcerptLength) + "TAIL"
	semantic := &stubSemantic{available: true, docs: []Document{{Content: long}}}
	svc := newTestService(Dependencies{LLM: model, Semantic: semantic})

	_, err := svc.Answer(context.Background(), Question{Text: "gateway"})
	require.NoError(t, err)
	assert.NotContains(t, model.prompts[0], "TAIL")
	assert.Contains(t, model.prompts[0], strings.Repeat("a", semanticExcerptLength))
}

func TestAnswerUsesFallbackChain(t *testing.T) {
	model := &stubLLM{answer: "unused"}
	chain := &stubChain{result: FallbackResult{
		Answer: "The docs are not sure about that.",
		Documents: []Document{
			{Content: strings.Repeat("x", 250)},
			{Content: "short excerpt"},
		},
	}}
	svc := newTestService(Dependencies{LLM: model, Fallback: chain})

	resp, err := svc.Answer(context.Background(), Question{Text: "How do I rotate the gateway certificate?"})
	require.NoError(t, err)

	assert.Zero(t, model.calls)
	assert.Equal(t, 1, chain.calls)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, strings.Repeat("x", chainExcerptLength)+"...", resp.Sources[0])
	assert.Equal(t, "short excerpt...", resp.Sources[1])
	assert.Equal(t, []string{MethodChain}, resp.Methods)
	assert.False(t, resp.SuggestTicket)
}

func TestAnswerFallbackChainFailureIsInternal(t *testing.T) {
	chain := &stubChain{err: errors.New("retriever down")}
	svc := newTestService(Dependencies{LLM: &stubLLM{answer: "unused"}, Fallback: chain})

	_, err := svc.Answer(context.Background(), Question{Text: "How do I rotate the gateway certificate?"})
	require.ErrorIs(t, err, ErrInternal)
}

func TestAnswerOutOfDomainBypassesFallbackChain(t *testing.T) {
	model := &stubLLM{answer: "Expect light rain."}
	chain := &stubChain{result: FallbackResult{Answer: "from the index"}}
	semantic := &stubSemantic{available: true}
	svc := newTestService(Dependencies{LLM: model, Semantic: semantic, Fallback: chain})

	resp, err := svc.Answer(context.Background(), Question{Text: "weather tomorrow?"})
	require.NoError(t, err)

	assert.Zero(t, chain.calls)
	assert.Zero(t, semantic.calls)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, []string{MethodGeneral}, resp.Methods)
	assert.Equal(t, []string{SourceGeneralKnowledge}, resp.Sources)
}

func TestAnswerSuggestsTicketOnUncertainty(t *testing.T) {
	cases := map[string]bool{
		"I Don't Know how to do that.":                    true,
		"The gateway behaviour is UNCLEAR from the docs.": true,
		"Please Contact Support for a license.":           true,
		"Open Settings and click Reset.":                  false,
		"":                                                false,
	}

	for answer, want := range cases {
		t.Run(answer, func(t *testing.T) {
			model := &stubLLM{answer: answer}
			svc := newTestService(Dependencies{LLM: model})
			resp, err := svc.Answer(context.Background(), Question{Text: "gateway"})
			if answer == "" {
				require.ErrorIs(t, err, ErrInternal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, resp.SuggestTicket)
		})
	}
}

func TestAnswerLLMFailureIsInternal(t *testing.T) {
	model := &stubLLM{err: errors.New("429 too many requests")}
	keyword := &stubKeyword{available: true, context: keywordContext}
	svc := newTestService(Dependencies{LLM: model, Keyword: keyword})

	resp, err := svc.Answer(context.Background(), Question{Text: "reset password"})
	require.ErrorIs(t, err, ErrInternal)
	assert.Empty(t, resp.Answer)
	assert.Equal(t, 1, model.calls)
}

func TestAnswerIncludesTicketContext(t *testing.T) {
	model := &stubLLM{answer: "ok"}
	svc := newTestService(Dependencies{LLM: model})

	_, err := svc.Answer(context.Background(), Question{Text: "gateway", Context: "Ticket #42: gateway offline"})
	require.NoError(t, err)
	assert.Contains(t, model.prompts[0], "ORIGINAL TICKET CONTEXT:\nTicket #42: gateway offline")
}
