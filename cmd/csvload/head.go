package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csvload/internal/loader"
)

func newHeadCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "head",
		Short: "Parse the source file and print the first rows",
		Long: `Head parses the configured source, applies the transform steps and prints the
first n rows as a table. Nothing is written to the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 0 {
				return fmt.Errorf("-n must be >= 0, got %d", n)
			}
			p, err := loadPipeline(cmd)
			if err != nil {
				return err
			}
			fr, err := loader.Parse(cmd.Context(), p)
			if err != nil {
				return err
			}
			if err := loader.ApplyTransforms(fr, p.Transform); err != nil {
				return err
			}
			return fr.Head(cmd.OutOrStdout(), n)
		},
	}
	cmd.Flags().IntVarP(&n, "rows", "n", 5, "number of rows to print")
	return cmd
}
