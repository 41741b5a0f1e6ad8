package cmd

import (
	"context"

	"github.com/hatlonely/pgsearch/cfg"
	"github.com/hatlonely/pgsearch/log"
	"github.com/hatlonely/pgsearch/log/logger"
	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/hatlonely/pgsearch/searchable"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Config 命令行的配置文件，支持 yaml/json/toml
type Config struct {
	Database   database.SQLOptions          `cfg:"database"`
	Logger     *ref.TypeOptions             `cfg:"logger"`
	Search     SearchConfig                 `cfg:"search"`
	Observable searchable.ObservableOptions `cfg:"observable"`
	Tables     []TableConfig                `cfg:"tables" validate:"required,min=1,dive"`
}

type SearchConfig struct {
	// Configuration 写入和检索使用的全文检索配置
	Configuration string `cfg:"configuration" def:"english"`
	// BatchSize reindex 每批读取的源记录数
	BatchSize int `cfg:"batchSize" def:"100" validate:"gte=1"`
}

// TableConfig 一张源表及其索引表
type TableConfig struct {
	Name       string                       `cfg:"name" validate:"required"`
	Alias      string                       `cfg:"alias"`
	PrimaryKey string                       `cfg:"primaryKey" def:"id"`
	Searchable searchable.Options           `cfg:"searchable"`
	Index      searchable.IndexTableOptions `cfg:"index"`
}

// IndexTable 索引表结构
func (t *TableConfig) IndexTable() (*schema.TableSchema, error) {
	table, err := searchable.IndexTable(t.Name, t.PrimaryKey, &t.Index)
	if err != nil {
		return nil, errors.WithMessagef(err, "table %s", t.Name)
	}
	return table, nil
}

func loadConfig(path string) (*Config, error) {
	var config Config
	if err := cfg.Load(path, &config); err != nil {
		return nil, errors.WithMessagef(err, "failed to load config %s", path)
	}
	return &config, nil
}

func (c *Config) table(name string) (*TableConfig, error) {
	for i := range c.Tables {
		if c.Tables[i].Name == name || c.Tables[i].Alias == name {
			return &c.Tables[i], nil
		}
	}
	return nil, errors.Errorf("table %s is not configured", name)
}

// selectTables name 为空时返回全部表
func (c *Config) selectTables(name string) ([]*TableConfig, error) {
	if name != "" {
		t, err := c.table(name)
		if err != nil {
			return nil, err
		}
		return []*TableConfig{t}, nil
	}
	tables := make([]*TableConfig, 0, len(c.Tables))
	for i := range c.Tables {
		tables = append(tables, &c.Tables[i])
	}
	return tables, nil
}

// app 一次命令执行中共享的依赖
type app struct {
	config     *Config
	logger     logger.Logger
	db         *database.SQL
	locator    *orm.Locator
	registerer prometheus.Registerer
}

func newApp(config *Config, registerer prometheus.Registerer) (*app, error) {
	l, err := log.NewLoggerWithOptions(config.Logger)
	if err != nil {
		return nil, err
	}

	db, err := database.NewSQLWithOptions(&config.Database)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to connect database")
	}

	registry := types.NewRegistry(types.WithSearchConfig(config.Search.Configuration))
	return &app{
		config:     config,
		logger:     l,
		db:         db,
		locator:    orm.NewLocator(db, registry, nil),
		registerer: registerer,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// behavior 从数据库读取源表和索引表结构，创建带观测的同步行为
func (a *app) behavior(ctx context.Context, t *TableConfig) (*searchable.ObservableBehavior, error) {
	var opts []orm.TableOption
	if t.Alias != "" {
		opts = append(opts, orm.WithAlias(t.Alias))
	}
	source, err := a.locator.Load(ctx, t.Name, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load table %s", t.Name)
	}

	indexTable, err := t.IndexTable()
	if err != nil {
		return nil, err
	}
	target, err := a.locator.Load(ctx, indexTable.Name())
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load index table %s", indexTable.Name())
	}

	config, err := t.Searchable.Config(nil)
	if err != nil {
		return nil, err
	}
	if config.Target == "" {
		config.Target = target.Alias()
	}
	if config.ForeignKey == "" {
		config.ForeignKey = indexTable.ColumnNames()[1]
	}
	if config.Configuration == "" {
		config.Configuration = a.config.Search.Configuration
	}

	b, err := searchable.New(source, a.locator, config,
		searchable.WithLogger(a.logger),
		searchable.WithBatchSize(a.config.Search.BatchSize),
	)
	if err != nil {
		return nil, err
	}

	// 各表的指标同名，以 table 标签区分
	observable := a.config.Observable
	observable.Registerer = prometheus.WrapRegistererWith(prometheus.Labels{"table": t.Name}, a.registerer)
	if observable.Logger == nil {
		observable.Logger = a.config.Logger
	}
	obs, err := searchable.NewObservableBehaviorWithOptions(b, &observable)
	if err != nil {
		return nil, err
	}
	return obs.Attach(), nil
}
