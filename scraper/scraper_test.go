package scraper

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helpCenter = map[string]string{
	"/hc/en-us": `<html><body>
		<a href="/hc/en-us/categories/1-Getting-Started">Getting started</a>
		<a href="/hc/en-us/categories/1-Getting-Started#top">Getting started again</a>
		<a href="/hc/en-us/articles/10-Welcome">Welcome</a>
		<a href="https://other.example.com/hc/en-us/articles/99">Elsewhere</a>
	</body></html>`,
	"/hc/en-us/categories/1-Getting-Started": `<html><body>
		<a href="/hc/en-us/sections/2-Gateway">Gateway</a>
		<a href="/hc/en-us/articles/10-Welcome">Welcome</a>
	</body></html>`,
	"/hc/en-us/sections/2-Gateway": `<html><body>
		<a href="/hc/en-us/articles/11-Install-gateway">Install</a>
		<a href="/hc/en-us/articles/12-Missing">Missing</a>
	</body></html>`,
	"/hc/en-us/articles/10-Welcome": `<html><head><title>Welcome</title></head><body>
		<header>Site header</header>
		<h1> Welcome </h1>
		<div class="article-body main"><p>Welcome to the help center.</p><script>alert(1)</script></div>
	</body></html>`,
	"/hc/en-us/articles/11-Install-gateway": `<html><body>
		<h1>Install the gateway</h1>
		<article><nav>Breadcrumbs</nav><p>Download the <strong>gateway</strong> installer.</p></article>
	</body></html>`,
}

func newHelpCenter(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := helpCenter[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlWalksCategoriesSectionsAndArticles(t *testing.T) {
	srv := newHelpCenter(t)
	s := New(NewHTTPLoader(0), Options{Logger: log.New(io.Discard, "", 0)})

	articles, err := s.Crawl(context.Background(), srv.URL+"/hc/en-us")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "Welcome", articles[0].Title)
	assert.Equal(t, srv.URL+"/hc/en-us/articles/10-Welcome", articles[0].URL)
	assert.Contains(t, articles[0].Content, "Welcome to the help center.")
	assert.NotContains(t, articles[0].Content, "alert")
	assert.NotEmpty(t, articles[0].ScrapedAt)

	assert.Equal(t, "Install the gateway", articles[1].Title)
	assert.Contains(t, articles[1].Content, "installer")
	assert.NotContains(t, articles[1].Content, "Breadcrumbs")
}

func TestCrawlHonoursMaxArticles(t *testing.T) {
	srv := newHelpCenter(t)
	s := New(NewHTTPLoader(0), Options{MaxArticles: 1, Logger: log.New(io.Discard, "", 0)})

	articles, err := s.Crawl(context.Background(), srv.URL+"/hc/en-us")
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestCrawlFailsWhenHomeIsUnreachable(t *testing.T) {
	srv := newHelpCenter(t)
	s := New(NewHTTPLoader(0), Options{Logger: log.New(io.Discard, "", 0)})

	_, err := s.Crawl(context.Background(), srv.URL+"/nowhere")
	require.Error(t, err)
}

func TestFetchArticleReportsMissingContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>Empty</h1><div>No body here</div></body></html>`))
	}))
	defer srv.Close()

	s := New(NewHTTPLoader(0), Options{Logger: log.New(io.Discard, "", 0)})
	_, err := s.FetchArticle(context.Background(), srv.URL+"/hc/articles/1")
	require.Error(t, err)
}

func TestLinksResolvesAndFilters(t *testing.T) {
	page := `<a href="articles/1">one</a><a href="/hc/articles/2#x">two</a><a href="/hc/articles/2">dup</a>
		<a href="/hc/sections/3">section</a><a href="mailto:help@example.com">mail</a>`

	links, err := Links(page, "https://help.example.com/hc/", "/articles/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://help.example.com/hc/articles/1",
		"https://help.example.com/hc/articles/2",
	}, links)
}
