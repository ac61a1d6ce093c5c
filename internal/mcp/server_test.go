package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/indexer"
	"github.com/dshills/docsearch-mcp/internal/layout"
	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// fakeSearcher records the last search and returns canned output
type fakeSearcher struct {
	resp     *searcher.SearchResponse
	err      error
	versions []string
	resident string

	query   string
	version string
	opts    searcher.Options
}

func (f *fakeSearcher) Search(_ context.Context, query, version string, opts searcher.Options) (*searcher.SearchResponse, error) {
	f.query, f.version, f.opts = query, version, opts
	return f.resp, f.err
}

func (f *fakeSearcher) ListAvailableVersions() ([]string, error) { return f.versions, nil }

func (f *fakeSearcher) Resident() string { return f.resident }

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func requireCode(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&fakeSearcher{})
	msg := s.mcp.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(msg)
	require.NoError(t, err)

	for _, name := range []string{ToolSearchDocs, ToolListVersions, ToolGetInstructions} {
		assert.Contains(t, string(out), fmt.Sprintf("%q", name))
	}
}

func TestHandleSearchDocs(t *testing.T) {
	fake := &fakeSearcher{resp: &searcher.SearchResponse{
		Version: "v53",
		Results: []types.SearchResult{
			{Content: "Configure deep linking.", Score: 0.5, Metadata: types.ResultMetadata{RelativePath: "guides/routing.md", Title: "Routing", Version: "v53"}},
			{Content: "Untitled passage.", Score: 0.412, Metadata: types.ResultMetadata{RelativePath: "misc/notes.md", Version: "v53"}},
		},
	}}
	s := NewServer(fake)

	res, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{
		"query":           "  deep links ",
		"version":         "v53",
		"max_results":     float64(3),
		"score_threshold": 0.25,
	}))
	require.NoError(t, err)

	assert.Equal(t, "  deep links ", fake.query, "query is passed through for the searcher to trim")
	assert.Equal(t, "v53", fake.version)
	assert.Equal(t, searcher.Options{MaxResults: 3, ScoreThreshold: 0.25}, fake.opts)

	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, `Found 2 documentation results for "deep links" in version v53:`))
	assert.Contains(t, text, "## 1. Routing\n**File:** guides/routing.md\n**Relevance:** 0.5\n\nConfigure deep linking.")
	assert.Contains(t, text, "## 2. misc/notes.md\n", "untitled results fall back to the path")
	assert.Contains(t, text, "**Relevance:** 0.412")
}

func TestHandleSearchDocs_Defaults(t *testing.T) {
	fake := &fakeSearcher{resp: &searcher.SearchResponse{Version: "latest"}}

	t.Run("built-in", func(t *testing.T) {
		s := NewServer(fake)
		res, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "camera"}))
		require.NoError(t, err)
		assert.Equal(t, "latest", fake.version)
		assert.Equal(t, searcher.Options{MaxResults: 5}, fake.opts)
		assert.Contains(t, resultText(t, res), `No documentation found for query "camera" in version latest.`)
	})

	t.Run("configured", func(t *testing.T) {
		s := NewServer(fake, WithSearchDefaults(searcher.Options{MaxResults: 8, ScoreThreshold: 0.2}))
		_, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "camera", "version": ""}))
		require.NoError(t, err)
		assert.Equal(t, "latest", fake.version)
		assert.Equal(t, searcher.Options{MaxResults: 8, ScoreThreshold: 0.2}, fake.opts)
	})
}

func TestHandleSearchDocs_Truncation(t *testing.T) {
	long := strings.Repeat("é", MaxContentChars+500)
	fake := &fakeSearcher{resp: &searcher.SearchResponse{
		Version: "latest",
		Results: []types.SearchResult{{Content: long, Score: 0.9, Metadata: types.ResultMetadata{RelativePath: "a.md", Title: "A"}}},
	}}
	s := NewServer(fake)

	res, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "q"}))
	require.NoError(t, err)
	text := resultText(t, res)

	assert.Contains(t, text, strings.Repeat("é", MaxContentChars)+truncationNote)
	assert.NotContains(t, text, strings.Repeat("é", MaxContentChars+1))
	assert.Contains(t, text, "Found 1 documentation result for")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "abc"+truncationNote, truncate("abcdef", 3))
}

func TestHandleSearchDocs_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty query", types.ErrEmptyQuery, ErrorCodeEmptyQuery},
		{"bad version", &types.InvalidVersionFormatError{Token: "53"}, ErrorCodeInvalidParams},
		{"bad options", fmt.Errorf("%w: max results", searcher.ErrInvalidOptions), ErrorCodeInvalidParams},
		{"unavailable", &types.VersionUnavailableError{Version: "v52", Available: []string{"latest"}}, ErrorCodeVersionUnavailable},
		{"load failure", &types.IndexLoadError{Version: "v53", Err: storage.ErrIndexCorrupt}, ErrorCodeIndexNotReady},
		{"credentials", &types.IndexLoadError{Version: "v53", Err: &types.ConfigError{Setting: "OPENAI_API_KEY", Err: embedder.ErrMissingAPIKey}}, ErrorCodeConfiguration},
		{"other", errors.New("boom"), ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeSearcher{err: tt.err})
			res, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "q"}))
			assert.Nil(t, res)
			requireCode(t, err, tt.code)
		})
	}

	t.Run("unavailable lists versions", func(t *testing.T) {
		s := NewServer(&fakeSearcher{err: &types.VersionUnavailableError{
			Version:   "v52",
			Available: []string{"latest", "v53"},
			Message:   "Version v52 is not available. Available versions: latest, v53",
		}})
		_, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "q", "version": "v52"}))
		mcpErr := requireCode(t, err, ErrorCodeVersionUnavailable)
		assert.Contains(t, mcpErr.Message, "latest, v53")
		assert.Equal(t, []string{"latest", "v53"}, mcpErr.Data.(map[string]interface{})["available"])
	})

	t.Run("non-string query", func(t *testing.T) {
		fake := &fakeSearcher{}
		s := NewServer(fake)
		_, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": 42.0}))
		requireCode(t, err, ErrorCodeInvalidParams)
		assert.Empty(t, fake.version, "searcher not called")
	})

	t.Run("non-integral max_results", func(t *testing.T) {
		for _, v := range []interface{}{2.5, "3", 1e20} {
			fake := &fakeSearcher{}
			s := NewServer(fake)
			_, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "q", "max_results": v}))
			mcpErr := requireCode(t, err, ErrorCodeInvalidParams)
			assert.Contains(t, mcpErr.Message, "max_results")
			assert.Empty(t, fake.version, "searcher not called for %v", v)
		}
	})

	t.Run("whole float max_results accepted", func(t *testing.T) {
		fake := &fakeSearcher{resp: &searcher.SearchResponse{Version: "latest"}}
		s := NewServer(fake)
		_, err := s.handleSearchDocs(context.Background(), callTool(ToolSearchDocs, map[string]interface{}{"query": "q", "max_results": 3.0}))
		require.NoError(t, err)
		assert.Equal(t, 3, fake.opts.MaxResults)
	})

	t.Run("missing arguments", func(t *testing.T) {
		s := NewServer(&fakeSearcher{})
		var req mcp.CallToolRequest
		req.Params.Name = ToolSearchDocs
		_, err := s.handleSearchDocs(context.Background(), req)
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleListVersions(t *testing.T) {
	t.Run("with versions", func(t *testing.T) {
		s := NewServer(&fakeSearcher{versions: []string{"latest", "v53"}, resident: "v53"})
		res, err := s.handleListVersions(context.Background(), callTool(ToolListVersions, nil))
		require.NoError(t, err)

		var out struct {
			Versions []string `json:"versions"`
			Count    int      `json:"count"`
			Loaded   string   `json:"loaded"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
		assert.Equal(t, []string{"latest", "v53"}, out.Versions)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "v53", out.Loaded)
	})

	t.Run("none", func(t *testing.T) {
		s := NewServer(&fakeSearcher{})
		res, err := s.handleListVersions(context.Background(), callTool(ToolListVersions, nil))
		require.NoError(t, err)
		text := resultText(t, res)
		assert.Contains(t, text, `"versions": []`)
		assert.NotContains(t, text, "loaded")
	})
}

func TestHandleGetInstructions(t *testing.T) {
	s := NewServer(&fakeSearcher{versions: []string{"latest", "v53"}})
	res, err := s.handleGetInstructions(context.Background(), callTool(ToolGetInstructions, nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "### 1. search_docs")
	assert.Contains(t, text, "- latest\n- v53")
	assert.Contains(t, text, "(optional): latest, v53 (default: latest)")

	empty := NewServer(&fakeSearcher{})
	res, err = empty.handleGetInstructions(context.Background(), callTool(ToolGetInstructions, nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No versions are initialized yet")
}

func TestServer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	l := layout.New(t.TempDir())
	index := storage.NewSQLiteIndex(embedder.NewLocalProvider())

	_, err := indexer.New(l, index).Build(ctx, []types.NormalizedDocument{
		{RelativePath: "guides/notifications.md", Content: "---\ntitle: Notifications\n---\n\n# Push notifications\n\nSend push notifications with the notifications module."},
		{RelativePath: "guides/camera.md", Content: "# Camera\n\nTake photos and request camera permissions."},
	}, "v53")
	require.NoError(t, err)

	s := NewServer(searcher.NewSearcher(l, index))

	res, err := s.handleSearchDocs(ctx, callTool(ToolSearchDocs, map[string]interface{}{
		"query":       "push notifications",
		"version":     "v53",
		"max_results": float64(1),
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "## 1. Notifications")
	assert.Contains(t, text, "**File:** guides/notifications.md")

	_, err = s.handleSearchDocs(ctx, callTool(ToolSearchDocs, map[string]interface{}{"query": "camera", "version": "v52"}))
	mcpErr := requireCode(t, err, ErrorCodeVersionUnavailable)
	assert.Contains(t, mcpErr.Message, "Available versions: v53")

	res, err = s.handleListVersions(ctx, callTool(ToolListVersions, nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"loaded": "v53"`)
}
