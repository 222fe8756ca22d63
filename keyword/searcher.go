package keyword

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
)

var ErrNoIndex = errors.New("no articles indexed")

const (
	defaultMaxResults  = 5
	defaultMinScore    = 0.1
	contextMinScore    = 0.15
	contextContentSize = 3500
	unknownScrapedAt   = "Unknown"
)

// Fetcher re-fetches a single article from its live URL.
type Fetcher interface {
	FetchArticle(ctx context.Context, url string) (Article, error)
}

type Options struct {
	// Product is the name printed in the context header.
	Product    string
	FetchFresh bool
	Fetcher    Fetcher
	Logger     *log.Logger
}

// Searcher ranks help-center articles for a query. It is read-only after
// construction and safe for concurrent use.
type Searcher struct {
	articles []Article
	index    *Index
	opts     Options
	logger   *log.Logger
}

func NewSearcher(articles []Article, opts Options) (*Searcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Searcher{
		articles: slices.Clone(articles),
		opts:     opts,
		logger:   logger,
	}
	if len(articles) == 0 {
		return s, nil
	}

	index, err := NewIndex(s.articles)
	if err != nil {
		return nil, err
	}
	s.index = index
	logger.Printf("keyword index loaded with %d articles", len(articles))
	return s, nil
}

// Available reports whether at least one article was indexed.
func (s *Searcher) Available() bool {
	return s != nil && s.index != nil
}

func (s *Searcher) ArticleCount() int {
	if s == nil {
		return 0
	}
	return len(s.articles)
}

func (s *Searcher) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}

// Search returns up to maxResults articles scoring at least 0.1, best first.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return s.search(ctx, query, maxResults, defaultMinScore)
}

type scored struct {
	pos   int
	score float64
}

func (s *Searcher) search(ctx context.Context, query string, maxResults int, minScore float64) ([]Result, error) {
	if !s.Available() {
		return nil, ErrNoIndex
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := s.index.Candidates(Keywords(query))
	if err != nil {
		return nil, err
	}
	slices.Sort(candidates)

	var ranked []scored
	for _, pos := range candidates {
		if pos < 0 || pos >= len(s.articles) {
			continue
		}
		score := Score(query, s.articles[pos])
		if score >= minScore {
			ranked = append(ranked, scored{pos: pos, score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		a := s.articles[r.pos]
		scrapedAt := a.ScrapedAt
		if scrapedAt == "" {
			scrapedAt = unknownScrapedAt
		}
		results = append(results, Result{
			Title:     a.Title,
			URL:       a.URL,
			Snippet:   Snippet(query, a.Content),
			Score:     r.score,
			ScrapedAt: scrapedAt,
		})
	}
	return results, nil
}

// SearchAndGetContext formats the best maxArticles matches as a context
// block for the language model. It returns "" when nothing scores high
// enough.
func (s *Searcher) SearchAndGetContext(ctx context.Context, query string, maxArticles int) (string, error) {
	if maxArticles <= 0 {
		maxArticles = 2
	}
	results, err := s.search(ctx, query, maxArticles*2, contextMinScore)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	if len(results) > maxArticles {
		results = results[:maxArticles]
	}

	articles := make([]Article, 0, len(results))
	for _, r := range results {
		if a, ok := s.resolve(ctx, r.URL); ok {
			articles = append(articles, a)
		}
	}
	if len(articles) == 0 {
		return "", nil
	}
	return formatContext(s.opts.Product, articles), nil
}

func (s *Searcher) resolve(ctx context.Context, url string) (Article, bool) {
	if s.opts.FetchFresh && s.opts.Fetcher != nil {
		fresh, err := s.opts.Fetcher.FetchArticle(ctx, url)
		if err == nil && fresh.Content != "" {
			fresh.Fresh = true
			if fresh.URL == "" {
				fresh.URL = url
			}
			return fresh, true
		}
		s.logger.Printf("fresh fetch of %s failed, using stored copy: %v", url, err)
	}

	for _, a := range s.articles {
		if a.URL == url {
			return a, true
		}
	}
	return Article{}, false
}

func formatContext(product string, articles []Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RELEVANT INFORMATION FROM %s KNOWLEDGE BASE:\n\n", strings.ToUpper(product))

	for i, a := range articles {
		fmt.Fprintf(&b, "Article %d: %s\n", i+1, a.Title)
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
		if a.Fresh {
			b.WriteString("Status: Fresh content (fetched just now)\n")
		} else {
			scrapedAt := a.ScrapedAt
			if scrapedAt == "" {
				scrapedAt = unknownScrapedAt
			}
			fmt.Fprintf(&b, "Scraped: %s\n", scrapedAt)
		}
		fmt.Fprintf(&b, "\nContent:\n%s\n\n", truncateRunes(a.Content, contextContentSize))
		b.WriteString(strings.Repeat("-", 80))
		b.WriteString("\n\n")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
