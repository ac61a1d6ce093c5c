package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docsearch-mcp/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsearch-mcp"

	// Tool names
	ToolSearchDocs      = "search_docs"
	ToolListVersions    = "list_versions"
	ToolGetInstructions = "get_instructions"
)

// ServerVersion is reported during the MCP handshake; overridden at link time
var ServerVersion = "1.0.0"

// Searcher is the search capability the tools expose.
type Searcher interface {
	Search(ctx context.Context, query, version string, opts searcher.Options) (*searcher.SearchResponse, error)
	ListAvailableVersions() ([]string, error)
	Resident() string
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	defaults searcher.Options
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSearchDefaults sets the options used when a call omits them
func WithSearchDefaults(opts searcher.Options) Option {
	return func(s *Server) { s.defaults = opts }
}

// NewServer creates a new MCP server instance
func NewServer(srch Searcher, opts ...Option) *Server {
	s := &Server{
		searcher: srch,
		defaults: searcher.Options{
			MaxResults:     searcher.DefaultMaxResults,
			ScoreThreshold: searcher.DefaultScoreThreshold,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("serving MCP on stdio", "server", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(listVersionsTool(), s.handleListVersions)
	s.mcp.AddTool(getInstructionsTool(), s.handleGetInstructions)
}
