package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// ColumnDescription information_schema.columns 中的一行
type ColumnDescription struct {
	Name              string
	Type              string
	Null              string
	Default           *string
	CharLength        *int
	ColumnPrecision   *int
	ColumnScale       *int
	DatetimePrecision *int
	Collation         string
}

var castPattern = regexp.MustCompile(`(?s)^'(.*)'(?:::.*)$`)

// DescribeColumn 把列描述转换为 Column 加入 table
func DescribeColumn(d Dialect, table *TableSchema, desc ColumnDescription) error {
	columnType, length, err := d.ConvertColumn(desc.Type)
	if err != nil {
		return err
	}

	column := Column{
		Name:   desc.Name,
		Type:   columnType,
		Length: length,
		Null:   Bool(strings.EqualFold(desc.Null, "YES")),
	}

	if desc.Default != nil {
		raw := *desc.Default
		if strings.HasPrefix(raw, "nextval") {
			column.AutoIncrement = true
		}
		column.Default = defaultValue(raw)
		if columnType == TypeBoolean {
			switch raw {
			case "true":
				column.Default = true
			case "false":
				column.Default = false
			}
		}
	}

	switch columnType {
	case TypeString, TypeChar, TypeText:
		column.Collate = desc.Collation
	}

	if desc.CharLength != nil && *desc.CharLength != 0 {
		column.Length = desc.CharLength
	}

	switch columnType {
	case TypeDecimal:
		column.Length = desc.ColumnPrecision
		if desc.ColumnScale != nil && *desc.ColumnScale != 0 {
			column.Precision = desc.ColumnScale
		}
	case TypeTimestampFractional:
		column.Precision = desc.DatetimePrecision
		if desc.DatetimePrecision != nil && *desc.DatetimePrecision == 0 {
			column.Type = TypeTimestamp
		}
	case TypeTimestampTimezone:
		column.Precision = desc.DatetimePrecision
	}

	table.AddColumn(column)
	return nil
}

// defaultValue 去掉序列、NULL 转换以及类型转换后缀
func defaultValue(raw string) any {
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw
	}
	if strings.HasPrefix(raw, "nextval") || strings.HasPrefix(raw, "NULL::") {
		return nil
	}
	return castPattern.ReplaceAllString(raw, "$1")
}
