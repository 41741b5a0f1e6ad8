package searchable

import (
	"context"
	"reflect"

	"github.com/hatlonely/pgsearch/log"
	"github.com/hatlonely/pgsearch/log/logger"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
)

// Behavior 让源表的增删改同步到全文检索索引表
// 源表的 Save/Delete 和回调在同一个事务中执行，同步失败时源表的修改一并回滚
type Behavior struct {
	source        *orm.Table
	target        *orm.Table
	foreignKey    string
	mapper        Mapper
	doIndex       Predicate
	doDeindex     Predicate
	configuration string
	batchSize     int
	logger        logger.Logger
}

type Option func(b *Behavior)

func WithLogger(l logger.Logger) Option {
	return func(b *Behavior) {
		b.logger = l
	}
}

// WithBatchSize Reindex 每批读取的源记录数
func WithBatchSize(n int) Option {
	return func(b *Behavior) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// New 创建同步行为，配置错误返回 *SetupError
// 返回的行为还没有挂到源表上，需要调用 Attach
func New(source *orm.Table, locator *orm.Locator, config Config, opts ...Option) (*Behavior, error) {
	if source == nil || locator == nil {
		return nil, &SetupError{Reason: "source table and locator are required"}
	}
	if source.PrimaryKey() == "" {
		return nil, &SetupError{Source: source.Name(), Reason: "source table has no primary key"}
	}

	b := &Behavior{
		source:        source,
		foreignKey:    config.ForeignKey,
		mapper:        config.Mapper,
		doIndex:       config.DoIndex,
		doDeindex:     config.DoDeindex,
		configuration: config.Configuration,
		batchSize:     100,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	targetAlias := config.Target
	if targetAlias == "" {
		targetAlias = source.Alias() + "Searches"
	}
	target, err := locator.Get(targetAlias)
	if err != nil {
		return nil, &SetupError{Source: source.Name(), Reason: "target table is not defined", Err: err}
	}
	b.target = target

	if b.foreignKey == "" {
		b.foreignKey = defaultForeignKey(source)
	}
	if !target.Schema().HasColumn(b.foreignKey) {
		return nil, &SetupError{
			Source: source.Name(),
			Reason: "foreign key " + b.foreignKey + " is not a column of " + target.Name(),
		}
	}

	if f, ok := b.mapper.(MapperFunc); ok && f == nil {
		return nil, &SetupError{Source: source.Name(), Reason: "mapper is not invocable"}
	}
	if b.mapper == nil {
		mapper, err := NewCopyMapperWithOptions(&CopyMapperOptions{Exclude: []string{source.PrimaryKey()}})
		if err != nil {
			return nil, &SetupError{Source: source.Name(), Reason: "default mapper", Err: err}
		}
		b.mapper = mapper
	}
	if b.doIndex == nil {
		b.doIndex = Always(true)
	}
	if b.doDeindex == nil {
		b.doDeindex = Always(false)
	}

	b.logger = b.logger.With("source", source.Name(), "target", target.Name())
	return b, nil
}

// defaultForeignKey articles + id -> article_id
func defaultForeignKey(source *orm.Table) string {
	return inflection.Singular(source.Name()) + "_" + source.PrimaryKey()
}

// Attach 把行为挂到源表上
func (b *Behavior) Attach() *Behavior {
	b.source.AddBehavior(b)
	return b
}

// Repository 索引表
func (b *Behavior) Repository() *orm.Table {
	return b.target
}

// RepositoryFk 索引表中指向源记录的外键列
func (b *Behavior) RepositoryFk() string {
	return b.foreignKey
}

// SourcePk 源表的主键列，联合主键时取第一列
func (b *Behavior) SourcePk() string {
	return b.source.PrimaryKey()
}

func (b *Behavior) Source() *orm.Table {
	return b.source
}

func (b *Behavior) Configuration() string {
	return b.configuration
}

type action int

const (
	actionSkip action = iota
	actionIndex
	actionDeindex
)

func (b *Behavior) decide(entity *orm.Entity) action {
	if !b.doIndex.Eval(entity) {
		return actionSkip
	}
	if b.doDeindex.Eval(entity) {
		return actionDeindex
	}
	return actionIndex
}

func (b *Behavior) apply(ctx context.Context, a action, entity *orm.Entity) error {
	switch a {
	case actionIndex:
		return b.IndexEntity(ctx, entity)
	case actionDeindex:
		return b.DeindexEntity(ctx, entity)
	}
	return nil
}

// AfterSave 源记录保存后调用
// DoIndex 为假时忽略，DoDeindex 为真时删除索引，否则写入索引
func (b *Behavior) AfterSave(ctx context.Context, entity *orm.Entity) error {
	return b.apply(ctx, b.decide(entity), entity)
}

// AfterDelete 源记录删除后删除全部对应的索引记录，主键为空时忽略
func (b *Behavior) AfterDelete(ctx context.Context, entity *orm.Entity) error {
	pk := entity.Get(b.SourcePk())
	if isEmpty(pk) {
		return nil
	}
	return b.deindex(ctx, pk)
}

// IndexEntity 为源记录写入或更新索引记录
func (b *Behavior) IndexEntity(ctx context.Context, entity *orm.Entity) error {
	pk := entity.Get(b.SourcePk())

	entry, err := b.BuildEntry(ctx, entity)
	if err != nil {
		var setupErr *SetupError
		if errors.As(err, &setupErr) {
			return err
		}
		return &IndexError{Source: b.source.Name(), Pk: pk, Err: err}
	}
	if entry == nil {
		return nil
	}

	if err := b.target.Save(ctx, entry); err != nil {
		if errors.Is(err, orm.ErrNotSaved) {
			return &IndexError{Source: b.source.Name(), Pk: pk}
		}
		return &IndexError{Source: b.source.Name(), Pk: pk, Err: err}
	}

	b.logger.DebugContext(ctx, "record indexed", "pk", pk, "entry", entry.Get(b.target.PrimaryKey()))
	return nil
}

// DeindexEntity 删除源记录对应的全部索引记录
// 主键为空时返回 *DeindexError
func (b *Behavior) DeindexEntity(ctx context.Context, entity *orm.Entity) error {
	pk := entity.Get(b.SourcePk())
	if isEmpty(pk) {
		return &DeindexError{Source: b.source.Name()}
	}
	return b.deindex(ctx, pk)
}

func (b *Behavior) deindex(ctx context.Context, pk any) error {
	n, err := b.target.DeleteAll(ctx, query.Term(b.foreignKey, pk))
	if err != nil {
		return &DeindexError{Source: b.source.Name(), Pk: pk, Err: err}
	}
	b.logger.DebugContext(ctx, "record deindexed", "pk", pk, "rows", n)
	return nil
}

// ReindexResult 重建索引的统计
type ReindexResult struct {
	Indexed   int
	Deindexed int
	Skipped   int
}

func (r ReindexResult) Total() int {
	return r.Indexed + r.Deindexed + r.Skipped
}

// Reindex 按主键顺序分批遍历源表，对每条记录执行与保存时相同的判断
// 每条记录单独写入，出错时返回已处理的统计
func (b *Behavior) Reindex(ctx context.Context) (ReindexResult, error) {
	var result ReindexResult
	pk := b.SourcePk()

	var last any
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sel := b.source.Query().OrderBy(pk, false).Limit(b.batchSize)
		if last != nil {
			sel.Where(&query.RangeQuery{Field: pk, Gt: last})
		}
		entities, err := b.source.Find(ctx, sel)
		if err != nil {
			return result, errors.WithMessagef(err, "failed to read %s", b.source.Name())
		}

		for _, entity := range entities {
			a := b.decide(entity)
			if err := b.apply(ctx, a, entity); err != nil {
				return result, err
			}
			switch a {
			case actionIndex:
				result.Indexed++
			case actionDeindex:
				result.Deindexed++
			default:
				result.Skipped++
			}
			last = entity.Get(pk)
		}

		if len(entities) < b.batchSize {
			break
		}
	}

	b.logger.InfoContext(ctx, "reindex completed",
		"indexed", result.Indexed,
		"deindexed", result.Deindexed,
		"skipped", result.Skipped,
	)
	return result, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}
