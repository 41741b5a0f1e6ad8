package types

import (
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/pkg/errors"
)

// Codec 列类型与 Go 值之间的转换
type Codec interface {
	// Decode 读路径，数据库值转换为 Go 值
	Decode(raw any) (any, error)
	// Encode 写路径，Go 值转换为可绑定的参数
	Encode(value any) (any, error)
	// Expression 写入时包装参数的 SQL 表达式，返回 nil 表示直接绑定
	Expression(value any) query.Expr
}

// Registry 列类型名到 Codec 的映射
// 在装配阶段构造，之后只读，通过依赖注入传给需要的组件
type Registry struct {
	codecs map[string]Codec
}

type Option func(r *Registry)

// WithSearchConfig 设置 tsvector 使用的检索配置
func WithSearchConfig(config string) Option {
	return func(r *Registry) {
		r.codecs[TypeTsvector] = NewTsvectorCodec(config)
	}
}

// WithCodec 注册自定义类型
func WithCodec(typeName string, codec Codec) Option {
	return func(r *Registry) {
		r.codecs[typeName] = codec
	}
}

// NewRegistry 默认包含 tsvector
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{codecs: map[string]Codec{
		TypeTsvector: NewTsvectorCodec(""),
	}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Get(typeName string) (Codec, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.codecs[typeName]
	return c, ok
}

// DecodeRow 按列类型解码一行数据
func (r *Registry) DecodeRow(row map[string]any, columnTypes map[string]string) error {
	for column, typeName := range columnTypes {
		raw, ok := row[column]
		if !ok {
			continue
		}
		codec, ok := r.Get(typeName)
		if !ok {
			continue
		}
		v, err := codec.Decode(raw)
		if err != nil {
			return errors.WithMessagef(err, "column %s", column)
		}
		row[column] = v
	}
	return nil
}

// EncodeValue 按列类型编码写入值，返回可直接放入 INSERT/UPDATE 的值或表达式
func (r *Registry) EncodeValue(typeName string, value any) (any, error) {
	codec, ok := r.Get(typeName)
	if !ok {
		return value, nil
	}
	if expr := codec.Expression(value); expr != nil {
		return expr, nil
	}
	return codec.Encode(value)
}
