package main

import (
	"fmt"

	"github.com/spf13/cobra"

	docversion "github.com/dshills/docsearch-mcp/internal/version"
)

func newVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List initialized documentation versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			available, err := docversion.NewResolver(a.layout).ListAvailable()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(available) == 0 {
				fmt.Fprintf(out, "No versions initialized under %s. Run: docsearch init latest\n", a.layout.Root())
				return nil
			}
			for _, v := range available {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
}
