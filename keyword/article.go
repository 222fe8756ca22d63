// Package keyword implements keyword search over scraped help-center
// articles: a sqlite article store, a bleve prefilter index and the
// relevance heuristic used to rank hits.
package keyword

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Article is a scraped knowledge-base entry. Articles are immutable once
// loaded into a Searcher.
type Article struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	ScrapedAt string `json:"scraped_at"`
	// Fresh marks content fetched at query time rather than from the store.
	Fresh bool `json:"-"`
}

// Result is one ranked hit returned by Search.
type Result struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	ScrapedAt string  `json:"scraped_at"`
}

// LoadJSON reads an article export written by WriteJSON or the scraper.
func LoadJSON(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read articles file: %w", err)
	}
	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode articles file: %w", err)
	}
	return articles, nil
}

func WriteJSON(path string, articles []Article) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create articles directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write articles file: %w", err)
	}
	return nil
}
