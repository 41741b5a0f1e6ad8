package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Tabler 结构体通过 TableName 指定表名
type Tabler interface {
	TableName() string
}

// FromStruct 从结构体构建 TableSchema
// 支持的 tag 格式：
// - `rdb:"column_name,type=tsvector,length=255,precision=2,null,notnull,default=x,primary,autoincrement"`
// - `rdb:"body,index,unique,gin,gist"` 或指定索引名 `rdb:"body,gin=idx_body"`，同名索引合并为多列索引
// - `table:"table_name"` 任意字段上指定表名
func FromStruct(v any) (*TableSchema, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %T", v)
	}
	rt := rv.Type()

	tableName := ""
	if tabler, ok := v.(Tabler); ok {
		tableName = tabler.TableName()
	}
	for i := 0; i < rt.NumField() && tableName == ""; i++ {
		tableName = rt.Field(i).Tag.Get("table")
	}
	if tableName == "" {
		tableName = toSnake(rt.Name())
	}

	table := NewTableSchema(tableName)
	var primaryKeys []string
	var indexes []*Index
	indexByName := map[string]*Index{}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("rdb")
		if tag == "-" {
			continue
		}

		column, isPrimary, fieldIndexes, err := parseFieldTag(field, tag)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to parse field %s", field.Name)
		}
		table.AddColumn(column)
		if isPrimary {
			primaryKeys = append(primaryKeys, column.Name)
		}
		for _, idx := range fieldIndexes {
			if existing, ok := indexByName[idx.Name]; ok {
				existing.Columns = append(existing.Columns, column.Name)
				continue
			}
			idx.Columns = []string{column.Name}
			indexByName[idx.Name] = idx
			indexes = append(indexes, idx)
		}
	}

	table.SetPrimaryKey(primaryKeys...)
	for _, idx := range indexes {
		if err := table.AddIndex(*idx); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func parseFieldTag(field reflect.StructField, tag string) (Column, bool, []*Index, error) {
	column := Column{
		Name: toSnake(field.Name),
		Type: inferColumnType(field.Type),
	}
	var isPrimary bool
	var indexes []*Index

	if tag == "" {
		return column, false, nil, nil
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" && !strings.Contains(parts[0], "=") {
		column.Name = parts[0]
		parts = parts[1:]
	}

	var rawDefault *string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "type":
			column.Type = ColumnType(value)
		case "length", "size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return column, false, nil, errors.Wrapf(err, "invalid length %q", value)
			}
			column.Length = &n
		case "precision":
			n, err := strconv.Atoi(value)
			if err != nil {
				return column, false, nil, errors.Wrapf(err, "invalid precision %q", value)
			}
			column.Precision = &n
		case "collate":
			column.Collate = value
		case "default":
			rawDefault = &value
		case "null":
			column.Null = Bool(true)
		case "notnull", "not_null", "required":
			column.Null = Bool(false)
		case "primary", "pk":
			isPrimary = true
		case "autoincrement":
			column.AutoIncrement = true
		case "index", "unique", "gin", "gist":
			name := value
			if !hasValue || name == "" {
				name = defaultIndexName(IndexType(key), column.Name)
			}
			indexes = append(indexes, &Index{Name: name, Type: IndexType(key)})
		default:
			return column, false, nil, errors.Errorf("unknown tag option %q", key)
		}
	}

	if rawDefault != nil {
		column.Default = parseDefaultValue(*rawDefault, column.Type)
	}
	return column, isPrimary, indexes, nil
}

func defaultIndexName(indexType IndexType, column string) string {
	switch indexType {
	case IndexTypeUnique:
		return "uk_" + column
	case IndexTypeGin, IndexTypeGist:
		return "fts_" + column
	}
	return "idx_" + column
}

var timeType = reflect.TypeOf(time.Time{})

// inferColumnType 从 Go 类型推断列类型
func inferColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return TypeTimestamp
	}
	// Tsvector 定义在 types 包中，这里按类型名识别以免引入依赖
	if t.Name() == "Tsvector" {
		return TypeTsvector
	}

	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int64, reflect.Uint64:
		return TypeBigInteger
	case reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16:
		return TypeSmallInteger
	case reflect.Int, reflect.Int32, reflect.Uint, reflect.Uint32:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBinary
		}
	}
	return TypeJSON
}

func parseDefaultValue(value string, columnType ColumnType) any {
	switch columnType {
	case TypeString, TypeChar, TypeText:
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			return value[1 : len(value)-1]
		}
		return value
	case TypeInteger, TypeBigInteger, TypeSmallInteger, TypeTinyInteger:
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	case TypeFloat, TypeDecimal:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case TypeBoolean:
		return value == "true" || value == "1"
	}
	return value
}

// toSnake ArticleSearch -> article_search
func toSnake(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := name[i-1]
				if prev < 'A' || prev > 'Z' {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
