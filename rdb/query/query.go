package query

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool  QueryType = "bool"
	QueryTypeTerm  QueryType = "term"
	QueryTypeRange QueryType = "range"
	QueryTypeExpr  QueryType = "expr"
)

// ErrUnsupported 条件无法在内存中求值，例如依赖数据库函数的表达式
var ErrUnsupported = errors.New("query cannot be evaluated in memory")

// Query 查询条件节点
type Query interface {
	Type() QueryType
	// ToSQL 生成以 ? 为占位符的 SQL 条件
	ToSQL() (string, []any, error)
	// Match 在内存记录上求值
	Match(record map[string]any) (bool, error)
}

// Compare 比较两个标量，数字按数值比较，字符串按字典序
// 返回 -1/0/1，类型不可比较时返回错误
func Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, nil
		}
		return 0, errors.Errorf("cannot compare %v with %v", a, b)
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, nil
			case fa > fb:
				return 1, nil
			}
			return 0, nil
		}
	}

	switch va := a.(type) {
	case string:
		vb, ok := asString(b)
		if !ok {
			break
		}
		switch {
		case va < vb:
			return -1, nil
		case va > vb:
			return 1, nil
		}
		return 0, nil
	case []byte:
		return Compare(string(va), b)
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			break
		}
		return va.Compare(vb), nil
	case bool:
		vb, ok := b.(bool)
		if !ok {
			break
		}
		if va == vb {
			return 0, nil
		}
		if !va {
			return -1, nil
		}
		return 1, nil
	}

	if fmt.Sprint(a) == fmt.Sprint(b) {
		return 0, nil
	}
	return 0, errors.Errorf("cannot compare %T with %T", a, b)
}

func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
