// Package mcpserver exposes the support agent as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/keyword"
)

const (
	serverName         = "support-agent"
	defaultArticleHits = 5
)

type Answerer interface {
	Answer(ctx context.Context, q chat.Question) (chat.Response, error)
}

type ArticleSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]keyword.Result, error)
}

type AskSupportInput struct {
	Question string `json:"question" jsonschema:"the customer question to answer"`
	Context  string `json:"context,omitempty" jsonschema:"optional background such as the original ticket text"`
}

type AskSupportOutput struct {
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	SuggestTicket bool     `json:"suggest_ticket"`
	SearchMethods []string `json:"search_methods_used"`
}

type SearchArticlesInput struct {
	Query      string `json:"query" jsonschema:"keywords to look up in the help center"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of articles (default 5)"`
}

type SearchArticlesOutput struct {
	Results    []keyword.Result `json:"results"`
	TotalFound int              `json:"total_found"`
}

// New builds an MCP server with the support tools registered. Either
// dependency may be nil, in which case its tool is left out.
func New(answerer Answerer, articles ArticleSearcher, version string, logger *log.Logger) *mcp.Server {
	if logger == nil {
		logger = log.Default()
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	if answerer != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "ask_support",
			Description: "Answer a customer-support question using the help-center knowledge base, semantic search and the language model.",
		}, askSupport(answerer))
	}
	if articles != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "search_articles",
			Description: "Keyword search over scraped help-center articles. Returns ranked titles, URLs and snippets.",
		}, searchArticles(articles))
	}

	logger.Printf("mcp server %s %s ready", serverName, version)
	return server
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func Run(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func askSupport(answerer Answerer) mcp.ToolHandlerFor[AskSupportInput, AskSupportOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in AskSupportInput) (*mcp.CallToolResult, AskSupportOutput, error) {
		resp, err := answerer.Answer(ctx, chat.Question{Text: in.Question, Context: in.Context})
		if err != nil {
			return nil, AskSupportOutput{}, err
		}
		out := AskSupportOutput{
			Answer:        resp.Answer,
			Sources:       resp.Sources,
			SuggestTicket: resp.SuggestTicket,
			SearchMethods: resp.Methods,
		}
		return textResult(out), out, nil
	}
}

func searchArticles(articles ArticleSearcher) mcp.ToolHandlerFor[SearchArticlesInput, SearchArticlesOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SearchArticlesInput) (*mcp.CallToolResult, SearchArticlesOutput, error) {
		limit := in.MaxResults
		if limit <= 0 {
			limit = defaultArticleHits
		}
		results, err := articles.Search(ctx, in.Query, limit)
		if err != nil {
			return nil, SearchArticlesOutput{}, err
		}
		if results == nil {
			results = []keyword.Result{}
		}
		out := SearchArticlesOutput{Results: results, TotalFound: len(results)}
		return textResult(out), out, nil
	}
}

func textResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}
}
