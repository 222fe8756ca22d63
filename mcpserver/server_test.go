package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/keyword"
)

type stubAnswerer struct {
	err error
}

func (s stubAnswerer) Answer(_ context.Context, q chat.Question) (chat.Response, error) {
	if s.err != nil {
		return chat.Response{}, s.err
	}
	return chat.Response{
		Answer:  "Answer to " + q.Text,
		Sources: []string{chat.SourceGeneralKnowledge},
		Methods: []string{chat.MethodGeneral},
	}, nil
}

type stubArticles struct{}

func (stubArticles) Search(_ context.Context, query string, maxResults int) ([]keyword.Result, error) {
	return []keyword.Result{{Title: query, URL: "https://help.example.com/articles/1", Score: float64(maxResults) / 10}}, nil
}

func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = server.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "support-agent-test", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *mcp.ClientSession, name string, args any) (string, *mcp.CallToolResult) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, result
}

func TestAskSupportTool(t *testing.T) {
	session := connect(t, New(stubAnswerer{}, stubArticles{}, "test", log.New(io.Discard, "", 0)))

	text, result := callText(t, session, "ask_support", map[string]any{"question": "reset password"})
	require.NoError(t, result.GetError())

	var out AskSupportOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "Answer to reset password", out.Answer)
	assert.Equal(t, []string{chat.MethodGeneral}, out.SearchMethods)
}

func TestSearchArticlesToolDefaultsLimit(t *testing.T) {
	session := connect(t, New(nil, stubArticles{}, "test", log.New(io.Discard, "", 0)))

	text, result := callText(t, session, "search_articles", map[string]any{"query": "gateway"})
	require.NoError(t, result.GetError())

	var out SearchArticlesOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "gateway", out.Results[0].Title)
	assert.InDelta(t, 0.5, out.Results[0].Score, 1e-9)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
}

func TestAskSupportToolReportsErrors(t *testing.T) {
	session := connect(t, New(stubAnswerer{err: errors.New("llm offline")}, nil, "test", log.New(io.Discard, "", 0)))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ask_support",
		Arguments: map[string]any{"question": "hi"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
