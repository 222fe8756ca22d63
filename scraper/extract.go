package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankLines  = regexp.MustCompile(`\n\s*\n`)
	spaceRuns   = regexp.MustCompile(` +`)
	bodyClasses = []string{"article-body", "article-content", "article__body"}
)

// Extractor turns a help-center article page into clean markdown text.
type Extractor struct {
	policy    *bluemonday.Policy
	converter *converter.Converter
}

func NewExtractor() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

type Page struct {
	Title   string
	Content string
}

// Extract finds the h1 title and the article body. The body is the first
// element carrying a known article class or id, then <article>, then <main>.
func (e *Extractor) Extract(rawHTML, pageURL string) (Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return Page{}, fmt.Errorf("parse HTML: %w", err)
	}

	title := ""
	if h1 := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.H1 }); h1 != nil {
		title = strings.TrimSpace(collectText(h1))
	}

	body := findBody(doc)
	if body == nil {
		return Page{}, fmt.Errorf("no article content found in %s", pageURL)
	}
	stripBoilerplate(body)

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return Page{}, fmt.Errorf("render article body: %w", err)
		}
	}
	clean := e.policy.Sanitize(buf.String())

	content, err := e.converter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(content) == "" {
		content = collectText(body)
	}

	return Page{Title: title, Content: tidy(content)}, nil
}

func findBody(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool {
		if hasAttr(n, "id", "article-body") {
			return true
		}
		for _, class := range bodyClasses {
			if hasClass(n, class) {
				return true
			}
		}
		return false
	}); n != nil {
		return n
	}
	if n := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Article }); n != nil {
		return n
	}
	return findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Main })
}

func stripBoilerplate(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header, atom.Aside, atom.Noscript:
				n.RemoveChild(c)
				continue
			}
		}
		stripBoilerplate(c)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasAttr(n *html.Node, key, val string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Val == val {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), class) {
			return true
		}
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func tidy(text string) string {
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Links returns the absolute same-host links in rawHTML whose path contains
// any of the given fragments, in document order and without duplicates.
func Links(rawHTML, baseURL string, fragments ...string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(a.Val))
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref)
				abs.Fragment = ""
				if abs.Host != base.Host || !containsAny(abs.Path, fragments) {
					continue
				}
				link := abs.String()
				if _, dup := seen[link]; !dup {
					seen[link] = struct{}{}
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
