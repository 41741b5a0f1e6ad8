package cmd

import (
	"encoding/json"

	"github.com/hatlonely/pgsearch/searchable"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	table string
	fts   searchable.FtsOptions
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search an index table",
		Long: `Search an index table and print matched rows as JSON lines.

Examples:
  pgsearch search --table articles --value "first article"
  pgsearch search --table articles --value "article body" --exact
  pgsearch search --table articles --value "second" --highlight --highlight-field content`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.config.table(opts.table)
			if err != nil {
				return err
			}
			b, err := a.behavior(cmd.Context(), t)
			if err != nil {
				return err
			}
			entities, err := b.Search(cmd.Context(), opts.fts)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			for _, entity := range entities {
				if err := encoder.Encode(entity.ToMap()); err != nil {
					return errors.Wrap(err, "failed to encode result")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.table, "table", "t", "", "Source table")
	cmd.Flags().StringVarP(&opts.fts.Value, "value", "v", "", "Search text, all rows when empty")
	cmd.Flags().StringVarP(&opts.fts.Field, "field", "f", "", "tsvector column to match")
	cmd.Flags().BoolVar(&opts.fts.Exact, "exact", false, "Match the value as a phrase")
	cmd.Flags().BoolVar(&opts.fts.Highlight, "highlight", false, "Add a highlighted snippet")
	cmd.Flags().StringVar(&opts.fts.HighlightField, "highlight-field", "", "Text column used for the snippet")
	cmd.Flags().BoolVar(&opts.fts.NoRank, "no-rank", false, "Do not rank results")
	cmd.Flags().StringVar(&opts.fts.Configuration, "configuration", "", "Full-text search configuration")
	cmd.Flags().IntVarP(&opts.fts.Limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.fts.Offset, "offset", 0, "Number of results to skip")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
