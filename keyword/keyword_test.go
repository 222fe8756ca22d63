package keyword

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArticles() []Article {
	return []Article{
		{
			Title:     "Reset your password",
			URL:       "https://help.example.com/articles/1-reset",
			Content:   "To reset your password open the profile page and click reset password.",
			ScrapedAt: "2024-01-01 10:00:00",
		},
		{
			Title:   "Gateway installation",
			URL:     "https://help.example.com/articles/2-gateway",
			Content: "Install the gateway on a Linux host. The gateway connects to DVSum.",
		},
		{
			Title:     "Billing",
			URL:       "https://help.example.com/articles/3-billing",
			Content:   "Invoices are sent monthly.",
			ScrapedAt: "2024-01-02 10:00:00",
		},
	}
}

func newTestSearcher(t *testing.T, opts Options) *Searcher {
	t.Helper()
	opts.Logger = log.New(io.Discard, "", 0)
	if opts.Product == "" {
		opts.Product = "DVSum"
	}
	s, err := NewSearcher(testArticles(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeywordsDropStopWordsAndShortTokens(t *testing.T) {
	assert.Equal(t, []string{"reset", "password", "dvsum"}, Keywords("How can I reset the password in DVSum?"))
	assert.Empty(t, Keywords("how to do it"))
}

func TestScore(t *testing.T) {
	article := Article{
		Title:   "How to reset your password",
		Content: "Open settings. Click reset then choose a new password.",
	}
	assert.InDelta(t, 0.9, Score("reset password", article), 1e-9)

	exact := Article{Title: "Reset password", Content: "reset password"}
	assert.InDelta(t, 1.0, Score("reset password", exact), 1e-9)

	assert.Zero(t, Score("how to", article))
	assert.Zero(t, Score("billing invoices", article))
}

func TestSnippetCentersOnFirstKeyword(t *testing.T) {
	content := strings.Repeat("x", 200) + "gateway" + strings.Repeat("y", 400)
	snippet := Snippet("gateway", content)

	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Contains(t, snippet, "gateway")
	assert.Len(t, snippet, snippetLength+6)
}

func TestSnippetWithoutMatch(t *testing.T) {
	long := strings.Repeat("a", 500)
	assert.Equal(t, strings.Repeat("a", snippetLength)+"...", Snippet("gateway", long))
	assert.Equal(t, "abc...", Snippet("gateway", "abc"))
}

func TestSearchRanksAndFilters(t *testing.T) {
	s := newTestSearcher(t, Options{})
	require.True(t, s.Available())
	assert.Equal(t, 3, s.ArticleCount())

	results, err := s.Search(context.Background(), "reset password", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://help.example.com/articles/1-reset", results[0].URL)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	results, err = s.Search(context.Background(), "reset dvsum", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Reset your password", results[0].Title)
	assert.Equal(t, "Gateway installation", results[1].Title)
	assert.Equal(t, unknownScrapedAt, results[1].ScrapedAt)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	results, err = s.Search(context.Background(), "quantum entanglement", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMatchesHanKeywords(t *testing.T) {
	articles := append(testArticles(), Article{
		Title:   "重置密码指南",
		URL:     "https://help.example.com/articles/4-zh-reset",
		Content: "在个人资料页面重置密码。",
	})
	s, err := NewSearcher(articles, Options{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	results, err := s.Search(context.Background(), "重置密码", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://help.example.com/articles/4-zh-reset", results[0].URL)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	results, err = s.Search(context.Background(), "self-serv gateway", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Gateway installation", results[0].Title)
}

func TestCandidatesCoverScoreMatches(t *testing.T) {
	idx, err := NewIndex(testArticles())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	positions, err := idx.Candidates([]string{"gateway"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions)

	positions, err = idx.Candidates([]string{"密码"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, positions)

	assert.True(t, termSearchable([]string{"café", "v2_gateway"}))
	assert.False(t, termSearchable([]string{"gateway", "パスワード"}))
}

func TestSearchAndGetContextFormatsArticles(t *testing.T) {
	s := newTestSearcher(t, Options{})

	blob, err := s.SearchAndGetContext(context.Background(), "reset password", 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob, "RELEVANT INFORMATION FROM DVSUM KNOWLEDGE BASE:\n\n"))
	assert.Contains(t, blob, "Article 1: Reset your password\n")
	assert.Contains(t, blob, "URL: https://help.example.com/articles/1-reset\n")
	assert.Contains(t, blob, "Scraped: 2024-01-01 10:00:00\n")
	assert.Contains(t, blob, "\nContent:\nTo reset your password")
	assert.Contains(t, blob, strings.Repeat("-", 80)+"\n\n")
	assert.NotContains(t, blob, "Article 2:")

	blob, err = s.SearchAndGetContext(context.Background(), "quantum entanglement", 3)
	require.NoError(t, err)
	assert.Empty(t, blob)
}

func TestSearchAndGetContextTruncatesContent(t *testing.T) {
	body := "gateway " + strings.Repeat("z", 4000)
	s, err := NewSearcher([]Article{{Title: "Gateway", URL: "https://help.example.com/g", Content: body}},
		Options{Product: "dvsum", Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	defer s.Close()

	blob, err := s.SearchAndGetContext(context.Background(), "gateway", 2)
	require.NoError(t, err)
	assert.Contains(t, blob, body[:contextContentSize]+"\n\n")
	assert.NotContains(t, blob, body[:contextContentSize+1])
}

type stubFetcher struct {
	article Article
	err     error
	calls   int
}

func (f *stubFetcher) FetchArticle(_ context.Context, url string) (Article, error) {
	f.calls++
	if f.err != nil {
		return Article{}, f.err
	}
	a := f.article
	a.URL = url
	return a, nil
}

func TestSearchAndGetContextFetchesFreshContent(t *testing.T) {
	fetcher := &stubFetcher{article: Article{Title: "Reset your password (updated)", Content: "Use the new reset wizard."}}
	s := newTestSearcher(t, Options{FetchFresh: true, Fetcher: fetcher})

	blob, err := s.SearchAndGetContext(context.Background(), "reset password", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Contains(t, blob, "Status: Fresh content (fetched just now)\n")
	assert.Contains(t, blob, "Use the new reset wizard.")
	assert.NotContains(t, blob, "Scraped:")
}

func TestSearchAndGetContextFallsBackToStoredArticle(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	s := newTestSearcher(t, Options{FetchFresh: true, Fetcher: fetcher})

	blob, err := s.SearchAndGetContext(context.Background(), "reset password", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Contains(t, blob, "Scraped: 2024-01-01 10:00:00\n")
}

func TestEmptySearcherIsUnavailable(t *testing.T) {
	s, err := NewSearcher(nil, Options{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	assert.False(t, s.Available())

	_, err = s.Search(context.Background(), "gateway", 5)
	require.ErrorIs(t, err, ErrNoIndex)
	_, err = s.SearchAndGetContext(context.Background(), "gateway", 3)
	require.ErrorIs(t, err, ErrNoIndex)

	var nilSearcher *Searcher
	assert.False(t, nilSearcher.Available())
	assert.Zero(t, nilSearcher.ArticleCount())
}

func TestStoreUpsertsByURL(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upsert(ctx, testArticles()))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	updated := testArticles()[0]
	updated.Content = "Password resets moved to the admin console."
	require.NoError(t, store.Upsert(ctx, []Article{updated, {Title: "no url"}}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, updated.URL, all[0].URL)
	assert.Equal(t, "Password resets moved to the admin console.", all[0].Content)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestJSONRoundTripKeepsScrapedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "articles.json")
	require.NoError(t, WriteJSON(path, testArticles()))

	loaded, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "2024-01-01 10:00:00", loaded[0].ScrapedAt)
	assert.False(t, loaded[0].Fresh)

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
