// Package mcp implements the Model Context Protocol (MCP) server for
// docsearch.
//
// The server exposes three tools to AI coding assistants:
//   - search_docs: Semantic search over one documentation version
//   - list_versions: Versions with an index on disk
//   - get_instructions: Usage guide including the available versions
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
//	docsearch serve
//
// # Tool: search_docs
//
//	Request:
//	{
//	  "name": "search_docs",
//	  "arguments": {
//	    "query": "how to implement push notifications",
//	    "version": "v53",
//	    "max_results": 3,
//	    "score_threshold": 0.5
//	  }
//	}
//
// The response is markdown: one section per result with rank, title, file
// and relevance. Passages longer than 2000 characters are truncated with a
// note pointing at the file.
//
// # Error Handling
//
// Errors carry JSON-RPC codes:
//   - -32602: Invalid params (bad version format, options out of range)
//   - -32603: Internal error
//   - -32001: Version not available (message lists available versions)
//   - -32002: Index could not be loaded
//   - -32003: Configuration error (missing credentials)
//   - -32004: Empty query
package mcp
