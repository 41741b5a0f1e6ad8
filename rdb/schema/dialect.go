package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Dialect 列类型推断和 DDL 生成
type Dialect interface {
	// ConvertColumn 把数据库的列类型描述转换为抽象类型和长度
	ConvertColumn(raw string) (ColumnType, *int, error)
	// ColumnSQL 生成单列定义
	ColumnSQL(table *TableSchema, name string) (string, error)
	// IndexSQL 生成 CREATE INDEX 语句
	IndexSQL(table *TableSchema, name string) (string, error)
	// CreateTableSQL 生成建表语句及其后的建索引语句
	CreateTableSQL(table *TableSchema) ([]string, error)
	QuoteIdentifier(name string) string
	SchemaValue(value any) string
}

// SchemaParseError 列类型描述无法解析
type SchemaParseError struct {
	Raw string
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("unable to parse column type from %q", e.Raw)
}

var columnTypePattern = regexp.MustCompile(`(?i)([a-z\s]+)(?:\(([0-9,]+)\))?`)

// parseColumnType 拆出小写的类型名和括号中的第一个数字
func parseColumnType(raw string) (string, *int, error) {
	matches := columnTypePattern.FindStringSubmatch(raw)
	if matches == nil || strings.TrimSpace(matches[1]) == "" {
		return "", nil, &SchemaParseError{Raw: raw}
	}
	col := strings.ToLower(strings.TrimSpace(matches[1]))
	var length *int
	if matches[2] != "" {
		n, err := strconv.Atoi(strings.SplitN(matches[2], ",", 2)[0])
		if err == nil {
			length = &n
		}
	}
	return col, length, nil
}

// PostgresDialect PostgreSQL 的通用列类型
type PostgresDialect struct{}

func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

func (d *PostgresDialect) ConvertColumn(raw string) (ColumnType, *int, error) {
	col, length, err := parseColumnType(raw)
	if err != nil {
		return "", nil, err
	}

	switch {
	case col == "date" || col == "time" || col == "boolean":
		return ColumnType(col), nil, nil
	case col == "timestamptz" || col == "timestamp with time zone":
		return TypeTimestampTimezone, nil, nil
	case strings.Contains(col, "timestamp"):
		return TypeTimestampFractional, nil, nil
	case strings.Contains(col, "time"):
		return TypeTime, nil, nil
	case col == "serial" || col == "integer":
		return TypeInteger, Int(10), nil
	case col == "bigserial" || col == "bigint":
		return TypeBigInteger, Int(20), nil
	case col == "smallint":
		return TypeSmallInteger, Int(5), nil
	case col == "inet":
		return TypeString, Int(39), nil
	case col == "uuid":
		return TypeUUID, nil, nil
	case col == "char":
		return TypeChar, length, nil
	case strings.Contains(col, "character"):
		return TypeString, length, nil
	// money 的值带有货币符号，按字符串处理
	case strings.Contains(col, "money") || col == "string":
		return TypeString, length, nil
	case strings.Contains(col, "text"):
		return TypeText, nil, nil
	case col == "bytea":
		return TypeBinary, nil, nil
	case col == "real" || strings.Contains(col, "double"):
		return TypeFloat, nil, nil
	case strings.Contains(col, "numeric") || strings.Contains(col, "decimal"):
		return TypeDecimal, nil, nil
	case strings.Contains(col, "json"):
		return TypeJSON, nil, nil
	}
	return TypeString, length, nil
}

var simpleTypes = map[ColumnType]string{
	TypeTinyInteger:         "SMALLINT",
	TypeSmallInteger:        "SMALLINT",
	TypeBinaryUUID:          "UUID",
	TypeBoolean:             "BOOLEAN",
	TypeFloat:               "FLOAT",
	TypeDecimal:             "DECIMAL",
	TypeDate:                "DATE",
	TypeTime:                "TIME",
	TypeDatetime:            "TIMESTAMP",
	TypeDatetimeFractional:  "TIMESTAMP",
	TypeTimestamp:           "TIMESTAMP",
	TypeTimestampFractional: "TIMESTAMP",
	TypeTimestampTimezone:   "TIMESTAMPTZ",
	TypeUUID:                "UUID",
	TypeChar:                "CHAR",
	TypeJSON:                "JSONB",
	TypeInteger:             "INTEGER",
	TypeBigInteger:          "BIGINT",
	TypeString:              "VARCHAR",
	TypeText:                "TEXT",
	TypeBinary:              "BYTEA",
}

func isTemporal(t ColumnType) bool {
	switch t {
	case TypeDatetime, TypeDatetimeFractional, TypeTimestamp, TypeTimestampFractional, TypeTimestampTimezone:
		return true
	}
	return false
}

func (d *PostgresDialect) ColumnSQL(table *TableSchema, name string) (string, error) {
	column, ok := table.Column(name)
	if !ok {
		return "", errors.Errorf("column %s not found in table %s", name, table.Name())
	}
	typeSQL, ok := simpleTypes[column.Type]
	if !ok {
		return "", errors.Errorf("unsupported column type %q for column %s", column.Type, name)
	}

	null := column.Null
	defaultValue := column.Default

	var sb strings.Builder
	sb.WriteString(d.QuoteIdentifier(name))

	switch column.Type {
	case TypeInteger, TypeBigInteger:
		pk := table.PrimaryKey()
		if (len(pk) == 1 && pk[0] == name) || column.AutoIncrement {
			typeSQL = "SERIAL"
			if column.Type == TypeBigInteger {
				typeSQL = "BIGSERIAL"
			}
			null, defaultValue = nil, nil
		}
	case TypeText:
		if column.Length != nil && *column.Length == LengthTiny {
			typeSQL = "VARCHAR"
		}
	}
	sb.WriteString(" " + typeSQL)

	switch {
	case column.Type == TypeChar:
		length := ""
		if column.Length != nil {
			length = strconv.Itoa(*column.Length)
		}
		sb.WriteString("(" + length + ")")
	case typeSQL == "VARCHAR":
		if column.Length != nil {
			fmt.Fprintf(&sb, "(%d)", *column.Length)
		}
	}

	switch column.Type {
	case TypeText, TypeString, TypeChar:
		if column.Collate != "" {
			fmt.Fprintf(&sb, ` COLLATE "%s"`, column.Collate)
		}
	}

	if (column.Type == TypeFloat || isTemporal(column.Type)) && column.Precision != nil {
		fmt.Fprintf(&sb, "(%d)", *column.Precision)
	}

	if column.Type == TypeDecimal && (column.Length != nil || column.Precision != nil) {
		length, precision := "", 0
		if column.Length != nil {
			length = strconv.Itoa(*column.Length)
		}
		if column.Precision != nil {
			precision = *column.Precision
		}
		fmt.Fprintf(&sb, "(%s,%d)", length, precision)
	}

	sb.WriteString(d.modifiers(column.Type, null, defaultValue))
	return sb.String(), nil
}

// modifiers 生成 NOT NULL 和 DEFAULT 部分
func (d *PostgresDialect) modifiers(columnType ColumnType, null *bool, defaultValue any) string {
	var sb strings.Builder
	if null != nil && !*null {
		sb.WriteString(" NOT NULL")
	}

	if s, ok := defaultValue.(string); ok && isTemporal(columnType) && strings.ToLower(s) == "current_timestamp" {
		sb.WriteString(" DEFAULT CURRENT_TIMESTAMP")
	} else if defaultValue != nil {
		if columnType == TypeBoolean {
			defaultValue = toBool(defaultValue)
		}
		sb.WriteString(" DEFAULT " + d.SchemaValue(defaultValue))
	} else if null != nil && *null {
		sb.WriteString(" DEFAULT NULL")
	}
	return sb.String()
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(val)
		return err == nil && b
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}
	return v != nil
}

func (d *PostgresDialect) IndexSQL(table *TableSchema, name string) (string, error) {
	index, ok := table.Index(name)
	if !ok {
		return "", errors.Errorf("index %s not found in table %s", name, table.Name())
	}
	statement := "CREATE INDEX"
	switch index.Type {
	case IndexTypeIndex:
	case IndexTypeUnique:
		statement = "CREATE UNIQUE INDEX"
	default:
		return "", errors.Errorf("unsupported index type %q for index %s", index.Type, name)
	}
	return fmt.Sprintf("%s %s ON %s (%s)", statement, d.QuoteIdentifier(name),
		d.QuoteIdentifier(table.Name()), quoteColumns(d, index.Columns)), nil
}

func (d *PostgresDialect) CreateTableSQL(table *TableSchema) ([]string, error) {
	return createTableSQL(d, table)
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	if name == "*" {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SchemaValue 把 Go 值转换为 DDL 中的常量
func (d *PostgresDialect) SchemaValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05") + "'"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return "'" + strings.ReplaceAll(fmt.Sprint(value), "'", "''") + "'"
}

func quoteColumns(d Dialect, columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, d.QuoteIdentifier(c))
	}
	return strings.Join(quoted, ", ")
}

// createTableSQL 列定义和主键使用 d 生成，索引作为单独的语句追加
func createTableSQL(d Dialect, table *TableSchema) ([]string, error) {
	if len(table.Columns()) == 0 {
		return nil, errors.Errorf("table %s has no columns", table.Name())
	}
	lines := make([]string, 0, len(table.Columns())+1)
	for _, c := range table.Columns() {
		line, err := d.ColumnSQL(table, c.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if pk := table.PrimaryKey(); len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", quoteColumns(d, pk)))
	}

	statements := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)",
		d.QuoteIdentifier(table.Name()), strings.Join(lines, ",\n  "))}
	for _, i := range table.Indexes() {
		statement, err := d.IndexSQL(table, i.Name)
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
	return statements, nil
}
