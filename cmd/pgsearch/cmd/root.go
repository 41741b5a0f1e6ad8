// Package cmd 提供 pgsearch 命令行
package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	metrics    bool
	registry   *prometheus.Registry
}

// NewRootCmd 创建 pgsearch 根命令
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{registry: prometheus.NewRegistry()}

	cmd := &cobra.Command{
		Use:   "pgsearch",
		Short: "Keep PostgreSQL full-text search tables in sync with their source tables",
		Long: `pgsearch maintains a tsvector index table next to each configured source table.

Examples:
  pgsearch schema --table articles
  pgsearch migrate
  pgsearch reindex --table articles
  pgsearch search --table articles --value "first article" --highlight`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "pgsearch.yaml", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&opts.metrics, "metrics", false, "Print collected metrics after the command finishes")

	cmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if !opts.metrics {
			return nil
		}
		return writeMetrics(cmd.ErrOrStderr(), opts.registry)
	}

	cmd.AddCommand(newSchemaCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))

	return cmd
}

// Execute 执行根命令
func Execute() error {
	return NewRootCmd().Execute()
}

// open 加载配置并连接数据库，调用方负责 Close
func (o *rootOptions) open() (*app, error) {
	config, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	return newApp(config, o.registry)
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return errors.Wrap(err, "failed to encode metrics")
		}
	}
	return nil
}
