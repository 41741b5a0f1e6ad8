package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/pkg/errors"
)

const describeColumnsSQL = `SELECT column_name, data_type, is_nullable, column_default,
character_maximum_length, numeric_precision, numeric_scale, datetime_precision, collation_name
FROM information_schema.columns
WHERE table_name = ? AND table_schema = current_schema()
ORDER BY ordinal_position`

const describePrimaryKeySQL = `SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.table_name = ? AND tc.table_schema = current_schema() AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`

// Describe 读取表结构，列类型由 dialect 推断
func (s *SQL) Describe(ctx context.Context, dialect schema.Dialect, table string) (*schema.TableSchema, error) {
	if s.driver == DriverSQLite {
		return s.describeSQLite(ctx, dialect, table)
	}

	sqlStr, args := s.formatSQL(describeColumnsSQL, []any{table})
	rows, err := s.executor(ctx).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to describe %s", table)
	}
	defer rows.Close()

	result := schema.NewTableSchema(table)
	for rows.Next() {
		var (
			desc                                       schema.ColumnDescription
			dataType                                   string
			defaultValue, collation                    sql.NullString
			charLength, precision, scale, datetimePrec sql.NullInt64
		)
		if err := rows.Scan(&desc.Name, &dataType, &desc.Null, &defaultValue,
			&charLength, &precision, &scale, &datetimePrec, &collation); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column of %s", table)
		}
		desc.Type = dataType
		desc.Collation = collation.String
		if defaultValue.Valid {
			desc.Default = &defaultValue.String
		}
		desc.CharLength = nullInt(charLength)
		desc.ColumnPrecision = nullInt(precision)
		desc.ColumnScale = nullInt(scale)
		desc.DatetimePrecision = nullInt(datetimePrec)

		if err := schema.DescribeColumn(dialect, result, desc); err != nil {
			return nil, errors.WithMessagef(err, "column %s of %s", desc.Name, table)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to describe %s", table)
	}
	if len(result.Columns()) == 0 {
		return nil, errors.Wrapf(ErrRecordNotFound, "table %s", table)
	}

	records, err := s.query(ctx, describePrimaryKeySQL, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to describe primary key of %s", table)
	}
	var pk []string
	for _, r := range records {
		pk = append(pk, fmt.Sprint(r["column_name"]))
	}
	result.SetPrimaryKey(pk...)
	return result, nil
}

// describeSQLite 通过 PRAGMA table_info 读取表结构，sqlite 保留建表时声明的类型
func (s *SQL) describeSQLite(ctx context.Context, dialect schema.Dialect, table string) (*schema.TableSchema, error) {
	records, err := s.query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", query.QuoteIdentifier(table)))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to describe %s", table)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrRecordNotFound, "table %s", table)
	}

	result := schema.NewTableSchema(table)
	var pk []string
	for _, r := range records {
		desc := schema.ColumnDescription{
			Name: fmt.Sprint(r["name"]),
			Type: fmt.Sprint(r["type"]),
			Null: "YES",
		}
		if n, _ := r["notnull"].(int64); n != 0 {
			desc.Null = "NO"
		}
		if v, ok := r["dflt_value"].(string); ok {
			desc.Default = &v
		}
		if err := schema.DescribeColumn(dialect, result, desc); err != nil {
			return nil, errors.WithMessagef(err, "column %s of %s", desc.Name, table)
		}
		if n, _ := r["pk"].(int64); n != 0 {
			pk = append(pk, desc.Name)
		}
	}
	result.SetPrimaryKey(pk...)
	return result, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
