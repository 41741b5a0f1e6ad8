package orm

import (
	"context"
	"sync"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/pkg/errors"
)

// Locator 按别名管理表，同一个 Locator 中的表共享数据库和类型注册表
type Locator struct {
	db       database.Database
	registry *types.Registry
	dialect  schema.Dialect

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewLocator dialect 用于 Load 时推断列类型，为 nil 时使用 FullTextDialect
func NewLocator(db database.Database, registry *types.Registry, dialect schema.Dialect) *Locator {
	if registry == nil {
		registry = types.NewRegistry()
	}
	if dialect == nil {
		dialect = schema.NewFullTextDialect(nil)
	}
	return &Locator{
		db:       db,
		registry: registry,
		dialect:  dialect,
		tables:   map[string]*Table{},
	}
}

func (l *Locator) Database() database.Database {
	return l.db
}

func (l *Locator) Registry() *types.Registry {
	return l.registry
}

func (l *Locator) Dialect() schema.Dialect {
	return l.dialect
}

// Register 注册已有的表，别名重复时返回错误
func (l *Locator) Register(table *Table) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.tables[table.Alias()]; ok && existing != table {
		return errors.Errorf("table alias %s already registered", table.Alias())
	}
	l.tables[table.Alias()] = table
	return nil
}

// Define 用给定的表结构创建并注册表
func (l *Locator) Define(tableSchema *schema.TableSchema, opts ...TableOption) (*Table, error) {
	table, err := NewTable(l.db, l.registry, tableSchema, opts...)
	if err != nil {
		return nil, err
	}
	if err := l.Register(table); err != nil {
		return nil, err
	}
	return table, nil
}

// DefineStruct 用结构体声明的表结构创建并注册表，tag 格式见 schema.FromStruct
func (l *Locator) DefineStruct(model any, opts ...TableOption) (*Table, error) {
	tableSchema, err := schema.FromStruct(model)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build schema from %T", model)
	}
	return l.Define(tableSchema, opts...)
}

// Load 从数据库读取表结构后注册
func (l *Locator) Load(ctx context.Context, name string, opts ...TableOption) (*Table, error) {
	tableSchema, err := l.db.Describe(ctx, l.dialect, name)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load table %s", name)
	}
	return l.Define(tableSchema, opts...)
}

// Get 先按别名查找，再按表名查找
func (l *Locator) Get(alias string) (*Table, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := l.tables[alias]; ok {
		return t, nil
	}
	for _, t := range l.tables {
		if t.Name() == alias {
			return t, nil
		}
	}
	return nil, errors.Errorf("table %s not found", alias)
}

func (l *Locator) Has(alias string) bool {
	_, err := l.Get(alias)
	return err == nil
}
