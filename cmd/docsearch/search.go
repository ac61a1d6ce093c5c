package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch-mcp/internal/searcher"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit     int
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <version> <query>",
		Short: "Search an initialized documentation version",
		Example: `  docsearch search latest "configure deep linking"
  docsearch search v53 "camera permissions" -n 3 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, closeIndex, err := a.vectorIndex(false)
			if err != nil {
				return err
			}
			defer closeIndex()

			opts := a.cfg.SearchOptions()
			if cmd.Flags().Changed("limit") {
				opts.MaxResults = limit
			}
			if cmd.Flags().Changed("threshold") {
				opts.ScoreThreshold = threshold
			}

			srch := searcher.NewSearcher(a.layout, index, searcher.WithLogger(a.logger))
			resp, err := srch.Search(cmd.Context(), args[1], args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(resp.Results, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, r := range resp.Results {
				title := r.Metadata.Title
				if title == "" {
					title = r.Metadata.RelativePath
				}
				fmt.Fprintf(out, "[%d] %s (%.3f)\n", i+1, title, r.Score)
				fmt.Fprintf(out, "    %s\n", r.Metadata.RelativePath)
				fmt.Fprintf(out, "    %s\n\n", snippet(r.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", searcher.DefaultMaxResults, "maximum number of results (1-10)")
	cmd.Flags().Float64Var(&threshold, "threshold", searcher.DefaultScoreThreshold, "minimum similarity score (0-1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

// snippet flattens whitespace and cuts s to n characters
func snippet(s string, n int) string {
	flat := strings.Join(strings.Fields(s), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "..."
}
