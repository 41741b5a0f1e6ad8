package schema

import (
	"github.com/pkg/errors"
)

// ColumnType 抽象列类型
type ColumnType string

const (
	TypeTinyInteger         ColumnType = "tinyinteger"
	TypeSmallInteger        ColumnType = "smallinteger"
	TypeInteger             ColumnType = "integer"
	TypeBigInteger          ColumnType = "biginteger"
	TypeString              ColumnType = "string"
	TypeChar                ColumnType = "char"
	TypeText                ColumnType = "text"
	TypeBinary              ColumnType = "binary"
	TypeUUID                ColumnType = "uuid"
	TypeBinaryUUID          ColumnType = "binaryuuid"
	TypeBoolean             ColumnType = "boolean"
	TypeFloat               ColumnType = "float"
	TypeDecimal             ColumnType = "decimal"
	TypeDate                ColumnType = "date"
	TypeTime                ColumnType = "time"
	TypeDatetime            ColumnType = "datetime"
	TypeDatetimeFractional  ColumnType = "datetimefractional"
	TypeTimestamp           ColumnType = "timestamp"
	TypeTimestampFractional ColumnType = "timestampfractional"
	TypeTimestampTimezone   ColumnType = "timestamptimezone"
	TypeJSON                ColumnType = "json"
	TypeTsvector            ColumnType = "tsvector"
)

// IndexType 索引类型
type IndexType string

const (
	IndexTypeIndex  IndexType = "index"
	IndexTypeUnique IndexType = "unique"
	IndexTypeGin    IndexType = "gin"
	IndexTypeGist   IndexType = "gist"
)

// LengthTiny text 列的短文本长度，按 VARCHAR 输出
const LengthTiny = 255

// Column 列定义，指针字段为 nil 表示未设置
type Column struct {
	Name          string
	Type          ColumnType
	Length        *int
	Precision     *int
	Null          *bool
	Default       any
	Collate       string
	AutoIncrement bool
}

// Index 索引定义
type Index struct {
	Name    string
	Type    IndexType
	Columns []string
}

// TableSchema 表结构，列按添加顺序保存
type TableSchema struct {
	name         string
	columns      []*Column
	primaryKey   []string
	indexes      []*Index
	displayField string
}

func NewTableSchema(name string) *TableSchema {
	return &TableSchema{name: name}
}

func (t *TableSchema) Name() string {
	return t.name
}

// AddColumn 添加列，同名列会被替换
func (t *TableSchema) AddColumn(column Column) *TableSchema {
	c := column
	for i, existing := range t.columns {
		if existing.Name == column.Name {
			t.columns[i] = &c
			return t
		}
	}
	t.columns = append(t.columns, &c)
	return t
}

func (t *TableSchema) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

func (t *TableSchema) Columns() []*Column {
	return t.columns
}

func (t *TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name)
	}
	return names
}

// ColumnTypes 列名到类型名的映射，用于按类型编解码
func (t *TableSchema) ColumnTypes() map[string]string {
	types := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		types[c.Name] = string(c.Type)
	}
	return types
}

// ColumnsOfType 指定类型的全部列名
func (t *TableSchema) ColumnsOfType(columnType ColumnType) []string {
	var names []string
	for _, c := range t.columns {
		if c.Type == columnType {
			names = append(names, c.Name)
		}
	}
	return names
}

func (t *TableSchema) SetPrimaryKey(columns ...string) *TableSchema {
	t.primaryKey = columns
	return t
}

func (t *TableSchema) PrimaryKey() []string {
	return t.primaryKey
}

// AddIndex 添加索引，索引引用的列必须已存在
func (t *TableSchema) AddIndex(index Index) error {
	if index.Name == "" {
		return errors.New("index name is required")
	}
	if len(index.Columns) == 0 {
		return errors.Errorf("index %s has no columns", index.Name)
	}
	switch index.Type {
	case IndexTypeIndex, IndexTypeUnique, IndexTypeGin, IndexTypeGist:
	case "":
		index.Type = IndexTypeIndex
	default:
		return errors.Errorf("invalid index type %q for index %s", index.Type, index.Name)
	}
	for _, c := range index.Columns {
		if !t.HasColumn(c) {
			return errors.Errorf("index %s references unknown column %s", index.Name, c)
		}
	}
	i := index
	t.indexes = append(t.indexes, &i)
	return nil
}

func (t *TableSchema) Index(name string) (*Index, bool) {
	for _, i := range t.indexes {
		if i.Name == name {
			return i, true
		}
	}
	return nil, false
}

func (t *TableSchema) Indexes() []*Index {
	return t.indexes
}

func (t *TableSchema) IndexNames() []string {
	names := make([]string, 0, len(t.indexes))
	for _, i := range t.indexes {
		names = append(names, i.Name)
	}
	return names
}

// DisplayField 未设置时依次尝试 title、name，最后使用主键
func (t *TableSchema) DisplayField() string {
	if t.displayField != "" {
		return t.displayField
	}
	for _, name := range []string{"title", "name"} {
		if t.HasColumn(name) {
			return name
		}
	}
	if len(t.primaryKey) > 0 {
		return t.primaryKey[0]
	}
	return ""
}

func (t *TableSchema) SetDisplayField(name string) *TableSchema {
	t.displayField = name
	return t
}

func Int(v int) *int {
	return &v
}

func Bool(v bool) *bool {
	return &v
}
