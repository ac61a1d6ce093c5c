package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/internal/version"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeVersionUnavailable = -32001 // Version has no index on disk
	ErrorCodeIndexNotReady      = -32002 // Index exists but could not be loaded
	ErrorCodeConfiguration      = -32003 // Missing or invalid configuration
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// MaxContentChars bounds the passage text returned per result
const MaxContentChars = 2000

const truncationNote = "...\n\n[Content truncated. Use the file path for complete documentation.]"

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	rawQuery, present := args["query"]
	query, ok := rawQuery.(string)
	if present && !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query must be a string", map[string]interface{}{
			"param": "query",
		})
	}

	versionToken := getStringDefault(args, "version", version.Latest)
	maxResults, err := getIntDefault(args, "max_results", s.defaults.MaxResults)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "max_results",
		})
	}
	opts := searcher.Options{
		MaxResults:     maxResults,
		ScoreThreshold: getFloatDefault(args, "score_threshold", s.defaults.ScoreThreshold),
	}

	resp, err := s.searcher.Search(ctx, query, versionToken, opts)
	if err != nil {
		s.logger.Warn("search failed", "version", versionToken, "error", err)
		return nil, toMCPError(err)
	}
	s.logger.Info("search",
		"version", resp.Version,
		"results", len(resp.Results),
		"loaded", resp.Loaded,
		"duration", resp.Duration,
	)

	return mcp.NewToolResultText(formatResults(strings.TrimSpace(query), resp)), nil
}

// handleListVersions handles the list_versions tool invocation
func (s *Server) handleListVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	versions, err := s.searcher.ListAvailableVersions()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list versions", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if versions == nil {
		versions = []string{}
	}

	response := map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	}
	if resident := s.searcher.Resident(); resident != "" {
		response["loaded"] = resident
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetInstructions handles the get_instructions tool invocation
func (s *Server) handleGetInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	versions, err := s.searcher.ListAvailableVersions()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list versions", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(instructions(versions)), nil
}

// toMCPError maps search failures onto protocol error codes
func toMCPError(err error) error {
	var (
		formatErr      *types.InvalidVersionFormatError
		unavailableErr *types.VersionUnavailableError
		loadErr        *types.IndexLoadError
		configErr      *types.ConfigError
	)

	switch {
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	case errors.As(err, &formatErr):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "version",
			"value": formatErr.Token,
		})
	case errors.Is(err, searcher.ErrInvalidOptions):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.As(err, &unavailableErr):
		available := unavailableErr.Available
		if available == nil {
			available = []string{}
		}
		return newMCPError(ErrorCodeVersionUnavailable, err.Error(), map[string]interface{}{
			"version":   unavailableErr.Version,
			"available": available,
		})
	case errors.As(err, &configErr):
		return newMCPError(ErrorCodeConfiguration, err.Error(), map[string]interface{}{
			"setting": configErr.Setting,
		})
	case errors.As(err, &loadErr):
		return newMCPError(ErrorCodeIndexNotReady, err.Error(), map[string]interface{}{
			"version": loadErr.Version,
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// formatResults renders a search response as markdown
func formatResults(query string, resp *searcher.SearchResponse) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No documentation found for query %q in version %s.\n\n"+
			"Try:\n"+
			"- Using different search terms\n"+
			"- Checking that the version matches your project\n"+
			"- Being more specific or more general with your query", query, resp.Version)
	}

	noun := "results"
	if len(resp.Results) == 1 {
		noun = "result"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d documentation %s for %q in version %s:\n\n", len(resp.Results), noun, query, resp.Version)
	for i, r := range resp.Results {
		title := r.Metadata.Title
		if title == "" {
			title = r.Metadata.RelativePath
		}
		fmt.Fprintf(&b, "## %d. %s\n", i+1, title)
		fmt.Fprintf(&b, "**File:** %s\n", r.Metadata.RelativePath)
		fmt.Fprintf(&b, "**Relevance:** %s\n\n", strconv.FormatFloat(r.Score, 'f', -1, 64))
		b.WriteString(truncate(r.Content, MaxContentChars))
		b.WriteString("\n\n---\n")
	}
	return b.String()
}

// truncate cuts s to limit characters and appends a note when it does
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationNote
}

func instructions(versions []string) string {
	versionList := "No versions are initialized yet. Run `docsearch init latest` (or `docsearch init v53`) on the server host."
	versionHint := version.Latest
	if len(versions) > 0 {
		items := make([]string, len(versions))
		for i, v := range versions {
			items[i] = "- " + v
		}
		versionList = strings.Join(items, "\n")
		versionHint = strings.Join(versions, ", ")
	}

	return fmt.Sprintf(`# Documentation Search - Usage Instructions

## Overview
This server provides semantic search over versioned documentation. Pages are
split into passages, embedded, and matched against your query by meaning.

## Tools

### 1. %s
Search one documentation version.

**Parameters:**
- `+"`query`"+` (required): Your question or keywords
- `+"`version`"+` (optional): %s (default: latest)
- `+"`max_results`"+` (optional): Number of results (%d-%d, default: %d)
- `+"`score_threshold`"+` (optional): Minimum relevance (0.0-1.0, default: 0.0)

**Example:**
`+"```json"+`
{
  "query": "how to implement push notifications",
  "version": "latest",
  "max_results": 3,
  "score_threshold": 0.5
}
`+"```"+`

### 2. %s
Lists the versions that can be searched.

### 3. %s
Returns these instructions.

## Available Versions
%s

## Usage Tips
1. **Be specific**: "tab navigation with the router" beats "navigation"
2. **Include context**: "camera permissions setup" beats "camera"
3. **Use natural language**: "How do I handle app state changes?" works well
4. **Match your version**: search the version your project depends on

## Troubleshooting
- **No results**: try broader terms or lower score_threshold
- **Low relevance scores**: make the query more specific
- **Version not available**: use one of the versions listed above
`, ToolSearchDocs, versionHint, searcher.MinMaxResults, searcher.MaxMaxResults, searcher.DefaultMaxResults,
		ToolListVersions, ToolGetInstructions, versionList)
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value. JSON
// numbers arrive as float64; a fractional value is rejected, not truncated.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) (int, error) {
	switch val := args[key].(type) {
	case nil:
		return defaultValue, nil
	case int:
		return val, nil
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > math.MaxInt32 {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, val)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, val)
	}
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
