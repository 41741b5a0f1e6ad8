package cmd

import (
	"context"
	"fmt"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing index tables",
		Args:  cobra.NoArgs,
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
				created, err := a.migrate(cmd.Context(), t)
				if err != nil {
					return err
				}
				state := "exists"
				if created {
					state = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.Name, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Source table, all configured tables when empty")
	return cmd
}

// migrate 索引表不存在时建表，已存在的表不做修改
func (a *app) migrate(ctx context.Context, t *TableConfig) (bool, error) {
	indexTable, err := t.IndexTable()
	if err != nil {
		return false, err
	}

	_, err = a.db.Describe(ctx, a.locator.Dialect(), indexTable.Name())
	if err == nil {
		a.logger.InfoContext(ctx, "index table exists", "table", indexTable.Name())
		return false, nil
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		return false, err
	}

	if err := a.db.Transaction(ctx, func(ctx context.Context) error {
		return a.db.CreateTable(ctx, a.locator.Dialect(), indexTable)
	}); err != nil {
		return false, errors.WithMessagef(err, "failed to create %s", indexTable.Name())
	}
	a.logger.InfoContext(ctx, "index table created", "table", indexTable.Name())
	return true, nil
}
