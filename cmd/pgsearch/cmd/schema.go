package cmd

import (
	"fmt"

	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/spf13/cobra"
)

func newSchemaCmd(root *rootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL of the index tables",
		Long: `Print CREATE TABLE and CREATE INDEX statements of the configured index tables.
No database connection is made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			tables, err := config.selectTables(table)
			if err != nil {
				return err
			}

			dialect := schema.NewFullTextDialect(nil)
			out := cmd.OutOrStdout()
			for _, t := range tables {
				indexTable, err := t.IndexTable()
				if err != nil {
					return err
				}
				statements, err := dialect.CreateTableSQL(indexTable)
				if err != nil {
					return err
				}
				for _, statement := range statements {
					fmt.Fprintf(out, "%s;\n", statement)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Source table, all configured tables when empty")
	return cmd
}
