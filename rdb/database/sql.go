package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type SQLOptions struct {
	Driver   string `cfg:"driver" def:"postgres" validate:"oneof=postgres sqlite3"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     int    `cfg:"port" def:"5432"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	SSLMode  string `cfg:"sslMode" def:"disable"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
}

type SQL struct {
	db     *sql.DB
	driver string
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	driverName := options.Driver
	dsn := options.DSN
	switch options.Driver {
	case DriverPostgres:
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				options.Host, options.Port, options.Username, options.Password, options.Database, options.SSLMode)
		}
	case DriverSQLite:
		// 注册了 to_tsvector 的 sqlite3 驱动
		driverName = sqliteDriverName
		if dsn == "" {
			dsn = options.Database
		}
	default:
		return nil, errors.Errorf("unsupported driver: %s", options.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", options.Driver)
	}

	if options.MaxConns > 0 {
		db.SetMaxOpenConns(options.MaxConns)
	}
	if options.MaxIdle > 0 {
		db.SetMaxIdleConns(options.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to ping %s", options.Driver)
	}

	return NewSQLWithDB(db, options.Driver), nil
}

// NewSQLWithDB 使用已有的连接，driver 决定占位符格式和主键回填方式
func NewSQLWithDB(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver}
}

func (s *SQL) Driver() string {
	return s.driver
}

func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Close() error {
	return s.db.Close()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// executor ctx 中有事务时使用事务
func (s *SQL) executor(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *SQL) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// buildValues 按列名排序生成列和值表达式
func buildValues(values map[string]any) ([]string, []string, []any, error) {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	placeholders := make([]string, 0, len(columns))
	var args []any
	for _, col := range columns {
		if expr, ok := values[col].(query.Expr); ok {
			sqlStr, exprArgs, err := expr.ToSQL()
			if err != nil {
				return nil, nil, nil, errors.WithMessagef(err, "column %s", col)
			}
			placeholders = append(placeholders, sqlStr)
			args = append(args, exprArgs...)
			continue
		}
		placeholders = append(placeholders, "?")
		args = append(args, values[col])
	}
	return columns, placeholders, args, nil
}

func quoteAll(names []string) []string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, query.QuoteIdentifier(n))
	}
	return quoted
}

func (s *SQL) Insert(ctx context.Context, table string, values map[string]any, pk string) (any, error) {
	if len(values) == 0 {
		return nil, errors.Errorf("no values to insert into %s", table)
	}
	columns, placeholders, args, err := buildValues(values)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", query.QuoteIdentifier(table),
		strings.Join(quoteAll(columns), ", "), strings.Join(placeholders, ", "))

	if s.driver == DriverPostgres && pk != "" {
		sqlStr += " RETURNING " + query.QuoteIdentifier(pk)
		sqlStr, args = s.formatSQL(sqlStr, args)
		var id any
		if err := s.executor(ctx).QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return nil, errors.Wrapf(err, "failed to insert into %s", table)
		}
		return normalizeValue(id), nil
	}

	sqlStr, args = s.formatSQL(sqlStr, args)
	result, err := s.executor(ctx).ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to insert into %s", table)
	}
	if pk == "" {
		return nil, nil
	}
	if v, ok := values[pk]; ok && v != nil {
		return v, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get last insert id of %s", table)
	}
	return id, nil
}

func (s *SQL) Update(ctx context.Context, table string, values map[string]any, where query.Query) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	columns, placeholders, args, err := buildValues(values)
	if err != nil {
		return 0, err
	}

	sets := make([]string, 0, len(columns))
	for i, col := range columns {
		sets = append(sets, fmt.Sprintf("%s = %s", query.QuoteIdentifier(col), placeholders[i]))
	}
	sqlStr := fmt.Sprintf("UPDATE %s SET %s", query.QuoteIdentifier(table), strings.Join(sets, ", "))

	whereSQL, whereArgs, err := where.ToSQL()
	if err != nil {
		return 0, err
	}
	sqlStr += " WHERE " + whereSQL
	args = append(args, whereArgs...)

	return s.exec(ctx, sqlStr, args, "update", table)
}

func (s *SQL) Delete(ctx context.Context, table string, where query.Query) (int64, error) {
	whereSQL, whereArgs, err := where.ToSQL()
	if err != nil {
		return 0, err
	}
	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE %s", query.QuoteIdentifier(table), whereSQL)
	return s.exec(ctx, sqlStr, whereArgs, "delete from", table)
}

func (s *SQL) exec(ctx context.Context, sqlStr string, args []any, action string, table string) (int64, error) {
	sqlStr, args = s.formatSQL(sqlStr, args)
	result, err := s.executor(ctx).ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to %s %s", action, table)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to %s %s", action, table)
	}
	return n, nil
}

func (s *SQL) Find(ctx context.Context, sel *query.Select) ([]map[string]any, error) {
	sqlStr, args, err := sel.ToSQL()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, sqlStr, args...)
}

func (s *SQL) query(ctx context.Context, sqlStr string, args ...any) ([]map[string]any, error) {
	sqlStr, args = s.formatSQL(sqlStr, args)
	rows, err := s.executor(ctx).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query")
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate rows")
	}
	return records, nil
}

// Exec 执行任意语句，用于迁移和测试准备数据
func (s *SQL) Exec(ctx context.Context, statement string, args ...any) error {
	statement, args = s.formatSQL(statement, args)
	if _, err := s.executor(ctx).ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrapf(err, "failed to execute %q", statement)
	}
	return nil
}

func (s *SQL) CreateTable(ctx context.Context, dialect schema.Dialect, table *schema.TableSchema) error {
	statements, err := dialect.CreateTableSQL(table)
	if err != nil {
		return err
	}
	for _, statement := range statements {
		if err := s.Exec(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

// formatSQL PostgreSQL 使用 $1, $2... 占位符，引号中的 ? 不替换
func (s *SQL) formatSQL(sqlStr string, args []any) (string, []any) {
	if s.driver != DriverPostgres || !strings.Contains(sqlStr, "?") {
		return sqlStr, args
	}

	var sb strings.Builder
	var quote byte
	count := 1
	for i := 0; i < len(sqlStr); i++ {
		c := sqlStr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			fmt.Fprintf(&sb, "$%d", count)
			count++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), args
}

func scanRow(rows *sql.Rows) (map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get columns")
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, errors.Wrap(err, "failed to scan row")
	}

	data := make(map[string]any, len(columns))
	for i, col := range columns {
		data[col] = normalizeValue(values[i])
	}
	return data, nil
}

// normalizeValue 驱动返回的 []byte 统一转换为 string
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
