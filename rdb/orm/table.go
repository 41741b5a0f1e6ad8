package orm

import (
	"context"
	"strings"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/pkg/errors"
)

// ErrNotSaved 存储没有写入任何数据，例如实体没有可保存的列
var ErrNotSaved = errors.New("entity not saved")

// Behavior 表的生命周期回调，在 Save/Delete 的同一个事务中执行
// 回调返回错误时整个操作回滚
type Behavior interface {
	AfterSave(ctx context.Context, entity *Entity) error
	AfterDelete(ctx context.Context, entity *Entity) error
}

// Table 单表的读写入口
type Table struct {
	name      string
	alias     string
	schema    *schema.TableSchema
	db        database.Database
	registry  *types.Registry
	behaviors []Behavior
}

type TableOption func(t *Table)

// WithAlias 默认别名为表名的驼峰形式，例如 articles_searches -> ArticlesSearches
func WithAlias(alias string) TableOption {
	return func(t *Table) {
		t.alias = alias
	}
}

func NewTable(db database.Database, registry *types.Registry, tableSchema *schema.TableSchema, opts ...TableOption) (*Table, error) {
	if db == nil {
		return nil, errors.New("database is nil")
	}
	if tableSchema == nil || tableSchema.Name() == "" {
		return nil, errors.New("table schema is required")
	}
	if registry == nil {
		registry = types.NewRegistry()
	}

	t := &Table{
		name:     tableSchema.Name(),
		alias:    Camelize(tableSchema.Name()),
		schema:   tableSchema,
		db:       db,
		registry: registry,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Alias() string {
	return t.alias
}

func (t *Table) Schema() *schema.TableSchema {
	return t.schema
}

func (t *Table) Database() database.Database {
	return t.db
}

func (t *Table) Registry() *types.Registry {
	return t.registry
}

// PrimaryKey 第一个主键列，没有主键时为空
func (t *Table) PrimaryKey() string {
	if pk := t.schema.PrimaryKey(); len(pk) > 0 {
		return pk[0]
	}
	return ""
}

func (t *Table) AddBehavior(b Behavior) {
	t.behaviors = append(t.behaviors, b)
}

func (t *Table) NewEntity(fields map[string]any) *Entity {
	return NewEntity(t.alias, fields)
}

// Save 插入或更新实体
// 新实体带有主键且主键已存在时按更新处理
func (t *Table) Save(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return errors.New("entity is nil")
	}
	if entity.Source() != t.alias {
		return errors.Errorf("entity of %s cannot be saved to %s", entity.Source(), t.alias)
	}

	return t.db.Transaction(ctx, func(ctx context.Context) error {
		if err := t.save(ctx, entity); err != nil {
			return err
		}
		for _, b := range t.behaviors {
			if err := b.AfterSave(ctx, entity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Table) save(ctx context.Context, entity *Entity) error {
	pk := t.PrimaryKey()
	if entity.IsNew() && pk != "" && entity.Has(pk) {
		exists, err := t.Exists(ctx, query.Term(pk, entity.Get(pk)))
		if err != nil {
			return err
		}
		entity.SetNew(!exists)
	}

	values, err := t.encode(entity)
	if err != nil {
		return err
	}

	if entity.IsNew() {
		if len(values) == 0 {
			return ErrNotSaved
		}
		id, err := t.db.Insert(ctx, t.name, values, pk)
		if err != nil {
			return err
		}
		if pk != "" && id != nil {
			entity.Set(pk, id)
		}
		entity.SetNew(false)
		return nil
	}

	if pk == "" || !entity.Has(pk) {
		return errors.Errorf("cannot update %s without primary key", t.name)
	}
	delete(values, pk)
	if len(values) == 0 {
		return nil
	}
	n, err := t.db.Update(ctx, t.name, values, query.Term(pk, entity.Get(pk)))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotSaved
	}
	return nil
}

// encode 只保留表中存在的列，按列类型编码
func (t *Table) encode(entity *Entity) (map[string]any, error) {
	values := map[string]any{}
	for _, name := range entity.Fields() {
		column, ok := t.schema.Column(name)
		if !ok {
			continue
		}
		v, err := t.registry.EncodeValue(string(column.Type), entity.Get(name))
		if err != nil {
			return nil, errors.WithMessagef(err, "column %s", name)
		}
		values[name] = v
	}
	return values, nil
}

// Delete 按主键删除实体，记录不存在时返回 database.ErrRecordNotFound
func (t *Table) Delete(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return errors.New("entity is nil")
	}
	pk := t.PrimaryKey()
	if pk == "" || !entity.Has(pk) {
		return errors.Errorf("cannot delete from %s without primary key", t.name)
	}

	return t.db.Transaction(ctx, func(ctx context.Context) error {
		n, err := t.db.Delete(ctx, t.name, query.Term(pk, entity.Get(pk)))
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.Wrapf(database.ErrRecordNotFound, "%s %v", t.name, entity.Get(pk))
		}
		for _, b := range t.behaviors {
			if err := b.AfterDelete(ctx, entity); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll 删除满足条件的全部行，不触发回调
func (t *Table) DeleteAll(ctx context.Context, where query.Query) (int64, error) {
	return t.db.Delete(ctx, t.name, where)
}

// Query 选择全部列的查询
func (t *Table) Query() *query.Select {
	return query.NewSelect(t.name).Columns(t.schema.ColumnNames()...)
}

// Find 执行查询并按列类型解码，计算字段原样保留
func (t *Table) Find(ctx context.Context, sel *query.Select) ([]*Entity, error) {
	rows, err := t.db.Find(ctx, sel)
	if err != nil {
		return nil, err
	}
	columnTypes := t.schema.ColumnTypes()
	entities := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		if err := t.registry.DecodeRow(row, columnTypes); err != nil {
			return nil, errors.WithMessagef(err, "table %s", t.name)
		}
		entities = append(entities, &Entity{source: t.alias, fields: row})
	}
	return entities, nil
}

// First 返回第一条记录，没有记录时返回 database.ErrRecordNotFound
func (t *Table) First(ctx context.Context, sel *query.Select) (*Entity, error) {
	entities, err := t.Find(ctx, sel.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, database.ErrRecordNotFound
	}
	return entities[0], nil
}

func (t *Table) Get(ctx context.Context, id any) (*Entity, error) {
	pk := t.PrimaryKey()
	if pk == "" {
		return nil, errors.Errorf("table %s has no primary key", t.name)
	}
	return t.First(ctx, t.Query().Where(query.Term(pk, id)))
}

func (t *Table) Exists(ctx context.Context, where query.Query) (bool, error) {
	sel := query.NewSelect(t.name).Where(where).Limit(1)
	if pk := t.PrimaryKey(); pk != "" {
		sel.Columns(pk)
	}
	rows, err := t.db.Find(ctx, sel)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Camelize articles_searches -> ArticlesSearches
func Camelize(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}
