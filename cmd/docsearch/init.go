package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/fetcher"
	"github.com/dshills/docsearch-mcp/internal/indexer"
	"github.com/dshills/docsearch-mcp/internal/ingest"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		force    bool
		localDir string
	)

	cmd := &cobra.Command{
		Use:   "init <version>",
		Short: "Download, convert and index a documentation version",
		Long: `Fetches the documentation pages for a version (v53, v52, ... or latest),
converts them to markdown and builds the vector index used for search.
Versioned refs that do not exist fall back to the default branch.`,
		Example: `  docsearch init latest
  docsearch init v53 --force
  docsearch init v53 --local ~/src/expo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, closeIndex, err := a.vectorIndex(false)
			if err != nil {
				return err
			}
			defer closeIndex()

			if localDir == "" {
				localDir = a.cfg.Source.LocalPath
			}
			var f fetcher.Fetcher
			if localDir != "" {
				f = fetcher.NewDirFetcher(localDir, a.cfg.FetchSource(), a.logger)
			} else {
				f = fetcher.NewGitHubFetcher(cmd.Context(), a.cfg.Source.GitHubToken,
					fetcher.WithSource(a.cfg.FetchSource()),
					fetcher.WithConcurrency(a.cfg.Source.Concurrency),
					fetcher.WithGitHubLogger(a.logger),
				)
			}

			builder := indexer.New(a.layout, index,
				indexer.WithChunker(chunker.New(a.cfg.ChunkerOptions()...)),
				indexer.WithLogger(a.logger),
			)
			pipeline := ingest.New(a.layout, f, builder, ingest.WithLogger(a.logger))

			report, err := pipeline.Initialize(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Existing {
				fmt.Fprintf(out, "Version %s is already initialized. Use --force to rebuild.\n", report.Version)
				return nil
			}
			source := "cache"
			if !report.FromCache {
				source = "ref " + report.Ref
			}
			fmt.Fprintf(out, "Initialized %s from %s\n", report.Version, source)
			fmt.Fprintf(out, "  Documents: %d\n", report.Documents)
			fmt.Fprintf(out, "  Passages:  %d\n", report.Passages)
			if len(report.Skipped) > 0 {
				fmt.Fprintf(out, "  Skipped:   %d\n", len(report.Skipped))
			}
			fmt.Fprintf(out, "  Duration:  %s\n", report.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refetch and rebuild even if the version exists")
	cmd.Flags().StringVar(&localDir, "local", "", "read pages from a local repository checkout instead of GitHub")
	return cmd
}
