package searchable

import (
	"context"

	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
)

// HeadlineOptions ts_headline 的格式参数
const HeadlineOptions = `MaxFragments=3, MaxWords=50, MinWords=5, StartSel="<strong>", StopSel="</strong>",FragmentDelimiter="[...]"`

const (
	// FieldRank 排序分数的别名
	FieldRank = "_rank"
	// FieldHighlight 高亮片段的别名
	FieldHighlight = "highlight"
)

// FtsOptions 全文检索参数，零值即默认值
type FtsOptions struct {
	// Field 检索的 tsvector 列，默认为索引表的显示列，显示列不是 tsvector 时取第一个 tsvector 列
	Field string
	// Value 检索词，为空时不加检索条件
	Value string
	// Exact 为真时使用 phraseto_tsquery 按短语匹配
	Exact bool
	// Configuration 检索配置名，默认使用行为的配置
	Configuration string
	// Highlight 为真时返回 highlight 字段
	Highlight bool
	// HighlightField 生成高亮片段的原文列
	// 默认为 Field，Field 是 tsvector 列时取索引表的第一个文本列，没有文本列时不生成高亮
	HighlightField string
	// TsFunction 自定义的查询解析函数，例如 websearch_to_tsquery
	TsFunction string
	// NoRank 为真时不计算 _rank，也不按 _rank 排序
	NoRank bool
	Limit  int
	Offset int
}

// FindFts 构建索引表上的全文检索查询
// 检索词总是以 :search_value 绑定，不会拼接到 SQL 中
func (b *Behavior) FindFts(opts FtsOptions) *query.Select {
	field := opts.Field
	if field == "" {
		field = defaultSearchField(b.target.Schema())
	}
	configuration := opts.Configuration
	if configuration == "" {
		configuration = b.configuration
	}
	tsFunction := opts.TsFunction
	if tsFunction == "" {
		tsFunction = "plainto_tsquery"
		if opts.Exact {
			tsFunction = "phraseto_tsquery"
		}
	}
	highlightField := opts.HighlightField
	if highlightField == "" {
		highlightField = defaultHighlightField(b.target.Schema(), field)
	}

	sel := b.target.Query()

	var match query.Expr
	if opts.Value != "" {
		var args []query.Expr
		if configuration != "" {
			args = append(args, query.Literal(configuration))
		}
		match = query.Func(tsFunction, append(args, query.Param("search_value"))...)
		sel.Bind("search_value", opts.Value)
	}

	if match != nil && opts.Highlight && highlightField != "" {
		var args []query.Expr
		if configuration != "" {
			args = append(args, query.Value(configuration))
		}
		args = append(args, query.Column(highlightField), match, query.Value(HeadlineOptions))
		sel.Field(FieldHighlight, query.Func("ts_headline", args...))
	}

	if match != nil && !opts.NoRank {
		// 2: 除以文档长度，4: 除以片段间的平均调和距离
		sel.Field(FieldRank, query.Func("ts_rank_cd", query.Column(field), match, query.Raw("2|4")))
	}

	if match != nil {
		sel.Where(query.Op(query.Column(field), "@@", match))
	}

	if sel.HasField(FieldRank) {
		sel.OrderBy(FieldRank, true)
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		sel.Offset(opts.Offset)
	}
	return sel
}

// Search 执行全文检索，_rank 和 highlight 作为实体字段返回
func (b *Behavior) Search(ctx context.Context, opts FtsOptions) ([]*orm.Entity, error) {
	return b.target.Find(ctx, b.FindFts(opts))
}

func defaultSearchField(table *schema.TableSchema) string {
	field := table.DisplayField()
	if column, ok := table.Column(field); ok && column.Type == schema.TypeTsvector {
		return field
	}
	if columns := table.ColumnsOfType(schema.TypeTsvector); len(columns) > 0 {
		return columns[0]
	}
	return field
}

// defaultHighlightField ts_headline 只接受原文，tsvector 列不能作为高亮来源
func defaultHighlightField(table *schema.TableSchema, field string) string {
	if column, ok := table.Column(field); ok && column.Type != schema.TypeTsvector {
		return field
	}
	if columns := table.ColumnsOfType(schema.TypeText); len(columns) > 0 {
		return columns[0]
	}
	return ""
}
