package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docsearch-mcp/internal/searcher"
)

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchDocs,
		Description: "Search the documentation semantically. The version should match the SDK version your project uses.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look for, in natural language",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "SDK version such as v53, or latest",
					"pattern":     `^(v\d+|latest)$`,
					"default":     "latest",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-10)",
					"minimum":     searcher.MinMaxResults,
					"maximum":     searcher.MaxMaxResults,
					"default":     searcher.DefaultMaxResults,
				},
				"score_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
					"default":     searcher.DefaultScoreThreshold,
				},
			},
			Required: []string{"query"},
		},
	}
}

// listVersionsTool returns the tool definition for list_versions
func listVersionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolListVersions,
		Description: "List documentation versions that are initialized and searchable",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getInstructionsTool returns the tool definition for get_instructions
func getInstructionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetInstructions,
		Description: "Explain how to use this server: tools, parameters, available versions and query tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
