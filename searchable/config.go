package searchable

import (
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
)

// Predicate 针对源记录的开关，用于 DoIndex 和 DoDeindex
type Predicate interface {
	Eval(entity *orm.Entity) bool
}

// Always 固定取值的开关
type Always bool

func (p Always) Eval(*orm.Entity) bool {
	return bool(p)
}

// When 由函数决定的开关
type When func(entity *orm.Entity) bool

func (p When) Eval(entity *orm.Entity) bool {
	return p(entity)
}

// FieldEquals 字段等于给定值时为真，Not 为真时取反
// 数字按数值比较，配置文件里的 1 和数据库里的 int64(1) 相等
type FieldEquals struct {
	Field string
	Value any
	Not   bool
}

func (p FieldEquals) Eval(entity *orm.Entity) bool {
	ok, err := p.Query().Match(entity.ToMap())
	return err == nil && ok
}

// Query 等价的查询条件，Not 为真时是 must_not 组合
func (p FieldEquals) Query() query.Query {
	term := query.Term(p.Field, p.Value)
	if p.Not {
		return &query.BoolQuery{MustNot: []query.Query{term}}
	}
	return term
}

// Config 同步行为的配置，New 之后不再修改
type Config struct {
	// Target 索引表别名，默认为 <源表别名>Searches
	Target string
	// ForeignKey 索引表中指向源记录主键的列，默认为 <单数表名>_<主键>
	ForeignKey string
	// Mapper 源记录到索引记录的映射，默认复制除主键外的全部字段
	Mapper Mapper
	// DoIndex 为假时保存源记录不做任何处理，默认为真
	DoIndex Predicate
	// DoDeindex 为真时保存源记录会删除对应的索引记录，默认为假
	DoDeindex Predicate
	// Configuration 全文检索配置名，例如 english，为空时使用数据库默认配置
	Configuration string
}

// Condition 配置文件中的字段条件
type Condition struct {
	Field  string `cfg:"field" validate:"required"`
	Equals any    `cfg:"equals"`
	Not    bool   `cfg:"not"`
}

func (c *Condition) predicate() Predicate {
	return FieldEquals{Field: c.Field, Value: c.Equals, Not: c.Not}
}

// Options 配置文件形式的同步配置
type Options struct {
	Target        string           `cfg:"target"`
	ForeignKey    string           `cfg:"foreignKey"`
	Configuration string           `cfg:"configuration"`
	Mapper        *ref.TypeOptions `cfg:"mapper"`
	DoIndex       *Condition       `cfg:"doIndex"`
	DoDeindex     *Condition       `cfg:"doDeindex"`
}

// Config 把配置文件形式转换为 Config，映射从 mappers 注册表中创建
// mappers 为空时使用 NewMapperRegistry
func (o *Options) Config(mappers *ref.Registry) (Config, error) {
	if o == nil {
		return Config{}, nil
	}
	c := Config{
		Target:        o.Target,
		ForeignKey:    o.ForeignKey,
		Configuration: o.Configuration,
	}
	if o.DoIndex != nil {
		c.DoIndex = o.DoIndex.predicate()
	}
	if o.DoDeindex != nil {
		c.DoDeindex = o.DoDeindex.predicate()
	}
	if o.Mapper != nil {
		if mappers == nil {
			mappers = NewMapperRegistry()
		}
		typeOptions := *o.Mapper
		if typeOptions.Namespace == "" {
			typeOptions.Namespace = Namespace
		}
		mapper, err := ref.NewT[Mapper](mappers, &typeOptions)
		if err != nil {
			return Config{}, &SetupError{Source: o.Target, Reason: "mapper is not invocable", Err: errors.Cause(err)}
		}
		c.Mapper = mapper
	}
	return c, nil
}
