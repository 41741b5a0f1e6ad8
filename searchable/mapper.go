package searchable

import (
	"context"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
)

// Namespace 内置映射在 ref 注册表中的命名空间
const Namespace = "github.com/hatlonely/pgsearch/searchable"

// Mapper 把源记录映射为索引表的实体
// 返回 nil 表示不需要索引
type Mapper interface {
	Map(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error)
}

type MapperFunc func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error)

func (f MapperFunc) Map(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
	return f(ctx, source, target)
}

type CopyMapperOptions struct {
	// Exclude 不复制的字段
	Exclude []string `cfg:"exclude"`
}

// CopyMapper 复制源记录的全部字段，目标表没有的列在保存时忽略
type CopyMapper struct {
	exclude map[string]struct{}
}

func NewCopyMapperWithOptions(options *CopyMapperOptions) (*CopyMapper, error) {
	m := &CopyMapper{exclude: map[string]struct{}{}}
	if options != nil {
		for _, field := range options.Exclude {
			m.exclude[field] = struct{}{}
		}
	}
	return m, nil
}

func (m *CopyMapper) Map(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
	fields := map[string]any{}
	for _, name := range source.Fields() {
		if _, ok := m.exclude[name]; ok {
			continue
		}
		fields[name] = source.Get(name)
	}
	return target.NewEntity(fields), nil
}

type FieldsMapperOptions struct {
	// Fields 索引表列名 -> 源记录字段名
	Fields map[string]string `cfg:"fields" validate:"required"`
}

// FieldsMapper 按列名对照表复制字段
type FieldsMapper struct {
	fields map[string]string
}

func NewFieldsMapperWithOptions(options *FieldsMapperOptions) (*FieldsMapper, error) {
	if options == nil || len(options.Fields) == 0 {
		return nil, errors.New("fields is required")
	}
	return &FieldsMapper{fields: options.Fields}, nil
}

func (m *FieldsMapper) Map(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
	fields := make(map[string]any, len(m.fields))
	for to, from := range m.fields {
		fields[to] = source.Get(from)
	}
	return target.NewEntity(fields), nil
}

// NewMapperRegistry 注册了内置映射的构造函数注册表
// 调用方可以在装配阶段注册自己的映射，配置中通过 type 引用
func NewMapperRegistry() *ref.Registry {
	registry := ref.NewRegistry()
	registry.MustRegister(Namespace, "Copy", NewCopyMapperWithOptions)
	registry.MustRegister(Namespace, "Fields", NewFieldsMapperWithOptions)
	return registry
}

// BuildEntry 为源记录构建索引实体，不写入数据库
// 索引表中已经有该源记录的行时，沿用该行的主键，保存时按更新处理
func (b *Behavior) BuildEntry(ctx context.Context, source *orm.Entity) (*orm.Entity, error) {
	entry, err := b.mapper.Map(ctx, source, b.target)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	if entry.Source() != b.target.Alias() {
		return nil, &SetupError{
			Source: b.source.Name(),
			Reason: "mapper must return an entity of " + b.target.Alias() + ", got " + entry.Source(),
		}
	}

	sourcePk := source.Get(b.SourcePk())
	if !entry.Has(b.foreignKey) {
		entry.Set(b.foreignKey, sourcePk)
	}

	pk := b.target.PrimaryKey()
	if pk == "" || entry.Has(pk) {
		return entry, nil
	}

	existing, err := b.target.First(ctx, query.NewSelect(b.target.Name()).
		Columns(pk).
		Where(query.Term(b.foreignKey, sourcePk)))
	if errors.Is(err, database.ErrRecordNotFound) {
		return entry, nil
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to find entry of %s", b.target.Name())
	}

	entry.Set(pk, existing.Get(pk))
	entry.SetNew(false)
	return entry, nil
}
