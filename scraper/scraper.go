// Package scraper crawls a Zendesk-style help center (categories, sections,
// articles) and extracts article text for the keyword index.
package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fabfab/support-agent/keyword"
)

const (
	categoryPath = "/categories/"
	sectionPath  = "/sections/"
	articlePath  = "/articles/"
)

type Options struct {
	// Delay is the pause between page loads.
	Delay time.Duration
	// MaxArticles stops the crawl early; zero means no limit.
	MaxArticles int
	Logger      *log.Logger
}

type Scraper struct {
	loader    PageLoader
	extractor *Extractor
	opts      Options
	logger    *log.Logger
}

func New(loader PageLoader, opts Options) *Scraper {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{
		loader:    loader,
		extractor: NewExtractor(),
		opts:      opts,
		logger:    logger,
	}
}

// Crawl walks the help center from homeURL and returns every article it
// could extract. Pages that fail to load are logged and skipped.
func (s *Scraper) Crawl(ctx context.Context, homeURL string) ([]keyword.Article, error) {
	home, err := s.loader.Load(ctx, homeURL)
	if err != nil {
		return nil, fmt.Errorf("load help center home: %w", err)
	}

	listings, err := Links(home, homeURL, categoryPath, sectionPath)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("found %d categories and sections", len(listings))

	articleURLs, err := Links(home, homeURL, articlePath)
	if err != nil {
		return nil, err
	}
	seenArticles := make(map[string]struct{}, len(articleURLs))
	for _, u := range articleURLs {
		seenArticles[u] = struct{}{}
	}

	seenListings := make(map[string]struct{}, len(listings))
	for _, u := range listings {
		seenListings[u] = struct{}{}
	}

	for i := 0; i < len(listings); i++ {
		if err := s.pause(ctx); err != nil {
			return nil, err
		}
		page, err := s.loader.Load(ctx, listings[i])
		if err != nil {
			s.logger.Printf("skip listing %s: %v", listings[i], err)
			continue
		}

		nested, _ := Links(page, listings[i], sectionPath)
		for _, u := range nested {
			if _, ok := seenListings[u]; !ok {
				seenListings[u] = struct{}{}
				listings = append(listings, u)
			}
		}

		found, _ := Links(page, listings[i], articlePath)
		for _, u := range found {
			if _, ok := seenArticles[u]; !ok {
				seenArticles[u] = struct{}{}
				articleURLs = append(articleURLs, u)
			}
		}
	}
	s.logger.Printf("found %d article links", len(articleURLs))

	var articles []keyword.Article
	for _, u := range articleURLs {
		if s.opts.MaxArticles > 0 && len(articles) >= s.opts.MaxArticles {
			break
		}
		if err := s.pause(ctx); err != nil {
			return articles, err
		}
		article, err := s.FetchArticle(ctx, u)
		if err != nil {
			s.logger.Printf("skip article %s: %v", u, err)
			continue
		}
		articles = append(articles, article)
	}

	s.logger.Printf("scraped %d articles", len(articles))
	return articles, nil
}

// FetchArticle loads and extracts a single article page.
func (s *Scraper) FetchArticle(ctx context.Context, articleURL string) (keyword.Article, error) {
	raw, err := s.loader.Load(ctx, articleURL)
	if err != nil {
		return keyword.Article{}, err
	}
	page, err := s.extractor.Extract(raw, articleURL)
	if err != nil {
		return keyword.Article{}, err
	}
	if strings.TrimSpace(page.Content) == "" {
		return keyword.Article{}, fmt.Errorf("article %s has no content", articleURL)
	}

	title := page.Title
	if title == "" {
		title = "No Title"
	}
	return keyword.Article{
		Title:     title,
		URL:       articleURL,
		Content:   page.Content,
		ScrapedAt: time.Now().Format(time.DateTime),
	}, nil
}

func (s *Scraper) pause(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.opts.Delay):
		return nil
	}
}

var _ keyword.Fetcher = (*Scraper)(nil)
