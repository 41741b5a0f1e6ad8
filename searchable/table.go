package searchable

import (
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
)

// IndexTableOptions 索引表的结构
type IndexTableOptions struct {
	// Name 索引表名，默认为 <源表名>_searches
	Name string `cfg:"name"`
	// ForeignKey 外键列名，默认为 <单数源表名>_<源表主键>
	ForeignKey string `cfg:"foreignKey"`
	// ForeignKeyType 外键列的类型，和源表主键一致
	ForeignKeyType string `cfg:"foreignKeyType" def:"integer" validate:"omitempty,oneof=integer biginteger string uuid"`
	// Vectors tsvector 列
	Vectors []string `cfg:"vectors" validate:"required,min=1"`
	// Texts 保存原文的列，用于生成高亮片段
	Texts []string `cfg:"texts"`
	// IndexType tsvector 列的索引类型
	IndexType string `cfg:"indexType" def:"gin" validate:"omitempty,oneof=gin gist"`
	// UniqueForeignKey 在外键上建唯一索引，防止并发写入产生重复行
	UniqueForeignKey bool `cfg:"uniqueForeignKey"`
}

// IndexTable 生成源表对应的索引表结构
// 主键为自增的 id，每个 tsvector 列单独建索引，外键上建普通索引或唯一索引
func IndexTable(sourceTable string, sourcePk string, options *IndexTableOptions) (*schema.TableSchema, error) {
	if options == nil || len(options.Vectors) == 0 {
		return nil, errors.New("at least one tsvector column is required")
	}
	if sourceTable == "" || sourcePk == "" {
		return nil, errors.New("source table and primary key are required")
	}

	name := options.Name
	if name == "" {
		name = sourceTable + "_searches"
	}
	foreignKey := options.ForeignKey
	if foreignKey == "" {
		foreignKey = inflection.Singular(sourceTable) + "_" + sourcePk
	}
	foreignKeyType := schema.ColumnType(options.ForeignKeyType)
	if foreignKeyType == "" {
		foreignKeyType = schema.TypeInteger
	}
	indexType := schema.IndexType(options.IndexType)
	if indexType == "" {
		indexType = schema.IndexTypeGin
	}

	table := schema.NewTableSchema(name).
		AddColumn(schema.Column{Name: "id", Type: schema.TypeInteger, AutoIncrement: true}).
		AddColumn(schema.Column{Name: foreignKey, Type: foreignKeyType, Null: schema.Bool(false)}).
		SetPrimaryKey("id")
	for _, column := range options.Vectors {
		table.AddColumn(schema.Column{Name: column, Type: schema.TypeTsvector})
	}
	for _, column := range options.Texts {
		table.AddColumn(schema.Column{Name: column, Type: schema.TypeText})
	}

	fkIndex := schema.Index{Name: "idx_" + name + "_" + foreignKey, Type: schema.IndexTypeIndex, Columns: []string{foreignKey}}
	if options.UniqueForeignKey {
		fkIndex = schema.Index{Name: "uk_" + name + "_" + foreignKey, Type: schema.IndexTypeUnique, Columns: []string{foreignKey}}
	}
	if err := table.AddIndex(fkIndex); err != nil {
		return nil, err
	}
	for _, column := range options.Vectors {
		if err := table.AddIndex(schema.Index{Name: "fts_" + name + "_" + column, Type: indexType, Columns: []string{column}}); err != nil {
			return nil, err
		}
	}
	return table, nil
}
