package database

import (
	"context"
	"sort"
	"sync"

	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/pkg/errors"
)

const DriverMemory = "memory"

// Memory 内存存储，用于测试和演示
// 条件在内存中求值，依赖数据库函数的条件和计算字段返回 query.ErrUnsupported
// to_tsvector 按 types.SimpleTsvector 模拟
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	schema *schema.TableSchema
	rows   []map[string]any
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]*memoryTable{}}
}

func (m *Memory) Driver() string {
	return DriverMemory
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) table(name string) (*memoryTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, errors.Errorf("table %s does not exist", name)
	}
	return t, nil
}

func (m *Memory) CreateTable(ctx context.Context, dialect schema.Dialect, table *schema.TableSchema) error {
	// 和真实数据库一样先生成 DDL，保证表结构对方言有效
	if _, err := dialect.CreateTableSQL(table); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table.Name()]; ok {
		return errors.Errorf("table %s already exists", table.Name())
	}
	m.tables[table.Name()] = &memoryTable{schema: table}
	return nil
}

func (m *Memory) Describe(ctx context.Context, dialect schema.Dialect, table string) (*schema.TableSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "table %s", table)
	}
	return t.schema, nil
}

func (m *Memory) Insert(ctx context.Context, table string, values map[string]any, pk string) (any, error) {
	row, err := evalValues(values)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	for col := range row {
		if !t.schema.HasColumn(col) {
			return nil, errors.Errorf("column %s does not exist in %s", col, table)
		}
	}

	var id any
	if pk != "" {
		id = row[pk]
		if id == nil {
			t.nextID++
			id = t.nextID
			row[pk] = id
		} else if n, ok := toInt64(id); ok && n > t.nextID {
			t.nextID = n
		}
		for _, existing := range t.rows {
			if c, err := query.Compare(existing[pk], id); err == nil && c == 0 {
				return nil, errors.Errorf("duplicate key %v in %s", id, table)
			}
		}
	}
	for _, col := range t.schema.ColumnNames() {
		if _, ok := row[col]; !ok {
			row[col] = nil
		}
	}
	t.rows = append(t.rows, row)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, table string, values map[string]any, where query.Query) (int64, error) {
	changes, err := evalValues(values)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, row := range t.rows {
		ok, err := where.Match(row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for k, v := range changes {
			row[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) Delete(ctx context.Context, table string, where query.Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}

	kept := t.rows[:0:0]
	for _, row := range t.rows {
		ok, err := where.Match(row)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, row)
		}
	}
	n := int64(len(t.rows) - len(kept))
	t.rows = kept
	return n, nil
}

func (m *Memory) Find(ctx context.Context, sel *query.Select) ([]map[string]any, error) {
	parts := sel.Parts()
	if len(parts.Fields) > 0 {
		return nil, errors.Wrapf(query.ErrUnsupported, "computed field %s", parts.Fields[0].Alias)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(parts.Table)
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, row := range t.rows {
		ok, err := query.And(parts.Conditions...).Match(row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	var sortErr error
	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range parts.Orders {
			c, err := query.Compare(matched[i][o.Expr], matched[j][o.Expr])
			if err != nil {
				sortErr = err
				return false
			}
			if c != 0 {
				return (c < 0) != o.Desc
			}
		}
		return false
	})
	if sortErr != nil {
		return nil, errors.WithMessage(sortErr, "failed to sort rows")
	}

	if parts.Offset > 0 {
		if parts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[parts.Offset:]
		}
	}
	if parts.Limit > 0 && len(matched) > parts.Limit {
		matched = matched[:parts.Limit]
	}

	records := make([]map[string]any, 0, len(matched))
	for _, row := range matched {
		records = append(records, project(row, parts.Columns))
	}
	return records, nil
}

func (m *Memory) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*Memory); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	snapshot := m.snapshot()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, m)); err != nil {
		m.mu.Lock()
		m.tables = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) snapshot() map[string]*memoryTable {
	tables := make(map[string]*memoryTable, len(m.tables))
	for name, t := range m.tables {
		rows := make([]map[string]any, 0, len(t.rows))
		for _, row := range t.rows {
			rows = append(rows, project(row, nil))
		}
		tables[name] = &memoryTable{schema: t.schema, rows: rows, nextID: t.nextID}
	}
	return tables
}

// project 复制一行，columns 为空时复制全部列
func project(row map[string]any, columns []string) map[string]any {
	if len(columns) == 0 {
		result := make(map[string]any, len(row))
		for k, v := range row {
			result[k] = v
		}
		return result
	}
	result := make(map[string]any, len(columns))
	for _, c := range columns {
		result[c] = row[c]
	}
	return result
}

// evalValues 计算写入值中的表达式
func evalValues(values map[string]any) (map[string]any, error) {
	row := make(map[string]any, len(values))
	for k, v := range values {
		expr, ok := v.(query.Expr)
		if !ok {
			row[k] = v
			continue
		}
		value, err := evalExpr(expr)
		if err != nil {
			return nil, errors.WithMessagef(err, "column %s", k)
		}
		row[k] = value
	}
	return row, nil
}

func evalExpr(expr query.Expr) (any, error) {
	f, ok := expr.(*query.FuncExpr)
	if !ok || f.Name != "to_tsvector" || len(f.Args) == 0 {
		return nil, query.ErrUnsupported
	}
	_, args, err := f.ToSQL()
	if err != nil {
		return nil, err
	}
	text, _ := args[len(args)-1].(string)
	v := types.SimpleTsvector(text)
	if v == nil {
		return nil, nil
	}
	return v.String(), nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
