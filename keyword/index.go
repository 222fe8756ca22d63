package keyword

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	supportAnalyzer = "support_text"
	indexBatchSize  = 100
)

// Index is a memory-only bleve index over article titles and bodies. It
// narrows the article set to candidates that contain at least one query
// keyword; ranking is left to Score.
type Index struct {
	index bleve.Index
	size  int
}

func NewIndex(articles []Article) (*Index, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(supportAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	im.DefaultAnalyzer = supportAnalyzer

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for i, a := range articles {
		if err := batch.Index(strconv.Itoa(i), map[string]any{
			"title":   a.Title,
			"content": a.Content,
		}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index article %s: %w", a.URL, err)
		}
		if batch.Size() >= indexBatchSize {
			if err := idx.Batch(batch); err != nil {
				idx.Close()
				return nil, fmt.Errorf("flush index batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			idx.Close()
			return nil, fmt.Errorf("flush index batch: %w", err)
		}
	}

	return &Index{index: idx, size: len(articles)}, nil
}

// Candidates returns the positions of articles whose title or content
// contains any of the keywords. Every article that Score would match is
// included; keywords the term index cannot answer return all positions.
func (i *Index) Candidates(keywords []string) ([]int, error) {
	if len(keywords) == 0 || i.size == 0 {
		return nil, nil
	}
	if !termSearchable(keywords) {
		return i.all(), nil
	}

	clauses := make([]query.Query, 0, len(keywords)*2)
	for _, kw := range keywords {
		for _, field := range []string{"title", "content"} {
			q := bleve.NewWildcardQuery("*" + kw + "*")
			q.SetField(field)
			clauses = append(clauses, q)
		}
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), i.size, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search bleve index: %w", err)
	}

	positions := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (i *Index) all() []int {
	positions := make([]int, i.size)
	for p := range positions {
		positions[p] = p
	}
	return positions
}

// termSearchable reports whether every keyword is Latin letters, digits or
// underscores. The unicode tokenizer keeps such runs inside one term, so a
// substring match in the text is a wildcard match on some term. Scripts such
// as Han, Kana or Thai are split into single-rune or dictionary terms.
func termSearchable(keywords []string) bool {
	for _, kw := range keywords {
		for _, r := range kw {
			if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
				return false
			}
		}
	}
	return true
}

func (i *Index) Close() error {
	return i.index.Close()
}
