package database

import (
	"context"

	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/pkg/errors"
)

// ErrRecordNotFound 查询不到记录
var ErrRecordNotFound = errors.New("record not found")

// Database 面向单表的存储接口
// values 中的值可以是 query.Expr，写入时作为 SQL 表达式而不是绑定参数
type Database interface {
	// Insert 插入一行，返回主键值；pk 为空时返回 nil
	Insert(ctx context.Context, table string, values map[string]any, pk string) (any, error)
	// Update 更新满足条件的行，返回影响的行数
	Update(ctx context.Context, table string, values map[string]any, where query.Query) (int64, error)
	// Delete 删除满足条件的行，返回影响的行数
	Delete(ctx context.Context, table string, where query.Query) (int64, error)
	Find(ctx context.Context, sel *query.Select) ([]map[string]any, error)
	// CreateTable 按方言生成建表和建索引语句并执行
	CreateTable(ctx context.Context, dialect schema.Dialect, table *schema.TableSchema) error
	// Describe 读取表结构
	Describe(ctx context.Context, dialect schema.Dialect, table string) (*schema.TableSchema, error)
	// Transaction 在事务中执行 fn，fn 返回错误时回滚
	// fn 中使用传入的 ctx 调用的操作都属于同一个事务，嵌套调用加入外层事务
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Driver() string
	Close() error
}

type txKey struct{}
