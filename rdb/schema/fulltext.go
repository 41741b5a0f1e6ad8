package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FullTextDialect 在基础方言之上支持 tsvector 列以及 GIN/GIST 索引
// 其余类型和索引交给基础方言处理
type FullTextDialect struct {
	base Dialect
}

// NewFullTextDialect base 为 nil 时使用 PostgresDialect
func NewFullTextDialect(base Dialect) *FullTextDialect {
	if base == nil {
		base = NewPostgresDialect()
	}
	return &FullTextDialect{base: base}
}

func (d *FullTextDialect) Base() Dialect {
	return d.base
}

func (d *FullTextDialect) ConvertColumn(raw string) (ColumnType, *int, error) {
	col, _, err := parseColumnType(raw)
	if err != nil {
		return "", nil, err
	}
	columnType, length, err := d.base.ConvertColumn(raw)
	if err != nil {
		return "", nil, err
	}
	// 基础方言不认识的类型会落到 string，此时再判断 tsvector
	if columnType == TypeString && strings.Contains(col, "tsvector") {
		return TypeTsvector, nil, nil
	}
	return columnType, length, nil
}

func (d *FullTextDialect) ColumnSQL(table *TableSchema, name string) (string, error) {
	column, ok := table.Column(name)
	if !ok {
		return "", errors.Errorf("column %s not found in table %s", name, table.Name())
	}
	if column.Type != TypeTsvector {
		return d.base.ColumnSQL(table, name)
	}

	out := d.QuoteIdentifier(name) + " TSVECTOR"
	if column.Null != nil && !*column.Null {
		out += " NOT NULL"
	}
	if column.Default != nil {
		out += " DEFAULT " + d.SchemaValue(column.Default)
	} else if column.Null != nil && *column.Null {
		out += " DEFAULT NULL"
	}
	return out, nil
}

func (d *FullTextDialect) IndexSQL(table *TableSchema, name string) (string, error) {
	index, ok := table.Index(name)
	if !ok {
		return "", errors.Errorf("index %s not found in table %s", name, table.Name())
	}

	var method string
	switch index.Type {
	case IndexTypeGin:
		method = "GIN"
	case IndexTypeGist:
		method = "GIST"
	default:
		return d.base.IndexSQL(table, name)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s USING %s (%s)", d.QuoteIdentifier(name),
		d.QuoteIdentifier(table.Name()), method, quoteColumns(d, index.Columns)), nil
}

func (d *FullTextDialect) CreateTableSQL(table *TableSchema) ([]string, error) {
	return createTableSQL(d, table)
}

func (d *FullTextDialect) QuoteIdentifier(name string) string {
	return d.base.QuoteIdentifier(name)
}

func (d *FullTextDialect) SchemaValue(value any) string {
	return d.base.SchemaValue(value)
}
