package database

import (
	"database/sql"
	"strings"

	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName 注册了 to_tsvector 函数的 sqlite3 驱动
// 向量以 PostgreSQL 的文本格式保存，读取时和 PostgreSQL 一样解码
const sqliteDriverName = "sqlite3_pgsearch"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("to_tsvector", toTsvector, true)
		},
	})
}

// toTsvector 支持 to_tsvector(text) 和 to_tsvector(config, text)，忽略检索配置
func toTsvector(args ...string) string {
	if len(args) == 0 {
		return ""
	}
	return types.SimpleTsvector(strings.Join(args[len(args)-1:], "")).String()
}
