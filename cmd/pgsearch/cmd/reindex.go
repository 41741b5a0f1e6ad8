package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(root *rootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild index rows from the source tables",
		Long: `Walk every row of the source table in primary key order and
index or deindex it according to the configured conditions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open()
			if err != nil {
				return err
			}
			defer a.Close()

			tables, err := a.config.selectTables(table)
			if err != nil {
				return err
			}
			for _, t := range tables {
				b, err := a.behavior(cmd.Context(), t)
				if err != nil {
					return err
				}
				result, err := b.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s indexed=%d deindexed=%d skipped=%d\n",
					t.Name, result.Indexed, result.Deindexed, result.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Source table, all configured tables when empty")
	return cmd
}
