package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch-mcp/internal/mcp"
	"github.com/dshills/docsearch-mcp/internal/searcher"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serves the search_docs, list_versions and get_instructions tools over
the Model Context Protocol on stdin/stdout. Versions must be initialized
first with "docsearch init".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			index, closeIndex, err := a.vectorIndex(true)
			if err != nil {
				return err
			}
			defer closeIndex()

			srch := searcher.NewSearcher(a.layout, index, searcher.WithLogger(a.logger))
			if versions, err := srch.ListAvailableVersions(); err == nil {
				a.logger.Info("available versions", "root", a.layout.Root(), "versions", versions)
			}

			mcp.ServerVersion = version
			server := mcp.NewServer(srch,
				mcp.WithLogger(a.logger),
				mcp.WithSearchDefaults(a.cfg.SearchOptions()),
			)
			err = server.Serve(cmd.Context())
			if errors.Is(err, context.Canceled) {
				a.logger.Info("server stopped")
				return nil
			}
			return err
		},
	}
}
